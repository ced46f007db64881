package viewmodels

type HomePage struct {
	BaseViewModel
	Albums []HomePageAlbum
}

type HomePageAlbum struct {
	Path     string
	Title    string
	Subtitle string
	CoverURL string
}
