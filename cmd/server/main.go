package main

import (
	"context"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sparklet/backend/live"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/server"
	"github.com/sparklet/backend/server/middlewares"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
	"github.com/sparklet/backend/triggers"
	"github.com/sparklet/backend/uploads"
	"github.com/sparklet/backend/utils/dotenv"
	. "github.com/sparklet/backend/utils/log"
)

const rateLimitPerMinute = 300

func main() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	middlewares.Setup()

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "sparklet"
	}
	db, err := store.New(context.Background(), mongoURI, dbName)
	if err != nil {
		Log.Fatalf("fail to connect to mongo: %v", err)
	}
	defer db.Close(context.Background())

	up, err := uploads.NewFromEnv()
	if err != nil {
		Log.Fatalf("fail to setup uploads: %v", err)
	}

	reviver := revive.New(db)
	router := stream.NewRouter(db, reviver)
	triggers.New(db, up).Run(context.Background(), router)
	rooms := live.NewManager(db, reviver, router)

	// Default comes with the Logger and Recovery middleware attached.
	engine := gin.Default()
	engine.Use(cors.Default())

	// Uploads on local disk are served by this process; behind S3 the
	// client fetches them from the bucket directly.
	uploadsBaseURL := os.Getenv("UPLOADS_BASE_URL")
	if local, ok := up.(*uploads.LocalStore); ok {
		engine.Static("/uploads", local.Dir())
		if uploadsBaseURL == "" {
			uploadsBaseURL = "/uploads"
		}
	}

	api := server.New(db, reviver, router, rooms, up, uploadsBaseURL)
	api.Register(engine, middlewares.RateLimit(rateLimitPerMinute), middlewares.JWT())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	Log.Infof("api server listening on :%s", port)
	if err := engine.Run(":" + port); err != nil {
		Log.Fatalf("server stopped: %v", err)
	}
}
