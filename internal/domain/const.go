package domain

const (
	// HTTP constants
	DEFAULT_USER_AGENT = "FFLinkPreviewBot/1.0 (+https://feralfile.com)"

	// Source repository constants
	GITHUB_HOST    = "github.com"
	GITHUB_API_URL = "https://api.github.com"

	// Blog platform constants
	DEVTO_API_URL = "https://dev.to/api"
)
