package profilesvc

// ProfileConfig holds configuration parameters for the profile service.
type ProfileConfig struct {
	// PublicBaseURL prefixes the URLs of uploaded profile images.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
}
