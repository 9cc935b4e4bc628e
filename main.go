package main

import (
	"os"

	"api-gateway/internal/app"
)

// @title API Gateway
// @version 1.0
// @description Token issuance, rate limiting, response caching and signed webhook delivery.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
