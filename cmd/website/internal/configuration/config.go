package configuration

import "github.com/adampresley/configinator"

type Config struct {
	CloudflareAccountID        string `flag:"cfaccount" env:"CLOUDFLARE_ACCOUNT_ID" default:"" description:"Cloudflare account ID for the Images API"`
	CloudflareImagesToken      string `flag:"cftoken" env:"CLOUDFLARE_IMAGES_TOKEN" default:"" description:"API token with Cloudflare Images edit permission"`
	DataDir                    string `flag:"datadir" env:"DATA_DIR" default:"./data" description:"Folder holding albums.json and photos.json"`
	DelegatedIdentityHeader    string `flag:"identityheader" env:"DELEGATED_IDENTITY_HEADER" default:"Cf-Access-Authenticated-User-Email" description:"Header injected by the access gateway with the authenticated user"`
	DSN                        string `flag:"dsn" env:"DSN" default:"file:./data/photogallery.db" description:"Data source name when STORE_DRIVER is sqlite"`
	Host                       string `flag:"host" env:"HOST" default:"localhost:8081" description:"The address and port to bind the HTTP server to"`
	ImageDeliveryBaseURL       string `flag:"deliveryurl" env:"IMAGE_DELIVERY_BASE_URL" default:"https://imagedelivery.net" description:"Base URL images are served from"`
	ImageDeliveryAccountHash   string `flag:"deliveryhash" env:"IMAGE_DELIVERY_ACCOUNT_HASH" default:"" description:"Account hash used in image delivery URLs"`
	LogLevel                   string `flag:"loglevel" env:"LOG_LEVEL" default:"debug" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'"`
	MaxSweepWorkers            int    `flag:"msw" env:"MAX_SWEEP_WORKERS" default:"4" description:"Maximum number of concurrent orphan delete workers"`
	OrphanGraceHours           int    `flag:"orphangrace" env:"ORPHAN_GRACE_HOURS" default:"24" description:"Images younger than this are never treated as orphans"`
	OrphanSweepIntervalMinutes int    `flag:"orphaninterval" env:"ORPHAN_SWEEP_INTERVAL_MINUTES" default:"60" description:"Minutes between orphan sweeps"`
	OrphanSweepMode            string `flag:"orphanmode" env:"ORPHAN_SWEEP_MODE" default:"off" description:"Orphan sweep mode. Valid values are 'off', 'report', and 'delete'"`
	ProviderBaseURL            string `flag:"providerurl" env:"PROVIDER_BASE_URL" default:"https://api.cloudflare.com/client/v4" description:"Base URL of the image provider API"`
	ProviderMaxRetries         int    `flag:"providerretries" env:"PROVIDER_MAX_RETRIES" default:"2" description:"Retries for transient image provider failures"`
	ProviderTimeoutSeconds     int    `flag:"providertimeout" env:"PROVIDER_TIMEOUT_SECONDS" default:"30" description:"Timeout for a single image provider call"`
	RevalidateToken            string `flag:"revalidatetoken" env:"REVALIDATE_TOKEN" default:"" description:"Bearer token accepted by /revalidate"`
	SiteBaseURL                string `flag:"siteurl" env:"SITE_BASE_URL" default:"http://localhost:8081" description:"Public base URL of the site, used for the sitemap and revalidation"`
	StoreDriver                string `flag:"store" env:"STORE_DRIVER" default:"json" description:"Catalog backend. Valid values are 'json' and 'sqlite'"`
	UploadAPIToken             string `flag:"uploadtoken" env:"UPLOAD_API_TOKEN" default:"" description:"Service token accepted by the upload endpoints"`
}

func LoadConfig() Config {
	config := Config{}
	configinator.Behold(&config)
	return config
}
