package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var (
	Port           string
	DefaultCountry string

	// Search engine (SerpAPI). Without it /search-piece answers with a 500.
	SerpAPIKey string

	// Garment detection
	LLMBackend   string
	GeminiAPIKey string
	GeminiModel  string
	OllamaURL    string
	OllamaModel  string

	// Public crop hosting
	ImgurClientID string
	AWSRegion     string
	AWSBucketName string

	// Affiliate rewriting
	TrendyolPartnerID string
	SkimlinksID       string

	// Optional shared storage for multi-worker deployments
	MongoURI    string
	DatabaseURL string

	PolicyFile             string
	ScraperBrowserFallback bool
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	Port = getEnv("PORT", "8080")
	DefaultCountry = strings.ToLower(getEnv("DEFAULT_COUNTRY", "us"))

	SerpAPIKey = os.Getenv("SERPAPI_KEY")

	LLMBackend = strings.ToLower(getEnv("LLM_BACKEND", "gemini"))
	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.5-flash")
	OllamaURL = getEnv("OLLAMA_URL", "http://localhost:11434")
	OllamaModel = getEnv("OLLAMA_MODEL", "qwen2.5vl:7b")

	ImgurClientID = os.Getenv("IMGUR_CLIENT_ID")
	AWSRegion = getEnv("AWS_REGION", "eu-central-1")
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")

	TrendyolPartnerID = os.Getenv("TRENDYOL_PARTNER_ID")
	SkimlinksID = os.Getenv("SKIMLINKS_ID")

	MongoURI = os.Getenv("MONGO_URI")
	DatabaseURL = os.Getenv("DATABASE_URL")

	PolicyFile = os.Getenv("POLICY_FILE")
	ScraperBrowserFallback = getEnv("SCRAPER_BROWSER_FALLBACK", "false") == "true"
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
