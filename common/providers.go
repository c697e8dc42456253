package common

// Names of the services able to search or deliver products
const (
	ProviderCopernicus = "copernicus"
	ProviderASF        = "asf"
	ProviderCMR        = "cmr"
	ProviderGS         = "gs"
	ProviderS3         = "s3"
	ProviderFTP        = "ftp"
	ProviderLocal      = "local"
)
