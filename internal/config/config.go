package config

import "os"

// Config holds everything the server reads from the environment.
// Values are loaded once in main and passed down explicitly; no package
// keeps its own os.Getenv calls.
type Config struct {
	Port      string
	MongoURI  string
	DBName    string
	JWTSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	DriveRootName string

	OllamaHost string
}

func Load() Config {
	return Config{
		Port:      getenv("PORT", "8080"),
		MongoURI:  getenv("MONGO_URI", "mongodb://localhost:27017/prompt"),
		DBName:    getenv("MONGO_DB", "prompt"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getenv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),

		DriveRootName: getenv("DRIVE_APP_ROOT_NAME", "ImageApp"),

		OllamaHost: getenv("OLLAMA_HOST", "http://localhost:11434"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
