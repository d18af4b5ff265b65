package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/gophreview/internal/server"
	"github.com/dmitrijs2005/gophreview/internal/server/config"
	"github.com/gin-gonic/gin"
)

func main() {

	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
