package viewmodels

type AlbumPage struct {
	BaseViewModel
	AlbumTitle    string
	AlbumSubtitle string
	Photos        []AlbumPagePhoto
}

type AlbumPagePhoto struct {
	ID     string
	URL    string
	Alt    string
	Width  int
	Height int
}
