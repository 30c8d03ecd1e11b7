package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prophecywatch/models"
	"prophecywatch/topics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prophecywatch_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prophecywatch_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})
)

// Message returned for any failure to produce the news list
const newsErrorMessage = "Failed to fetch news"

type ServerConfig struct {

	// Topic ruleset backing the verses endpoints and topic filter
	Ruleset *topics.Ruleset

	// Source of aggregated news, normally a CachedNews
	News NewsProvider

	// Maximum number of items returned by /api/news, zero for no limit
	MaxItems int

	// Optional directory with the dashboard assets
	StaticDir string
}

// Returns a fiber.App serving the read-only news and verses API
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "prophecywatch",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Render the error now so the logged status is the one the client gets
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		latency := time.Since(start)
		route := c.Route().Path
		status := c.Response().StatusCode()

		requestDuration.WithLabelValues(c.Method(), route).Observe(latency.Seconds())
		requestTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()

		log.WithFields(log.Fields{
			"method":    c.Method(),
			"route":     route,
			"status":    status,
			"latency":   latency,
			"requestid": c.Locals(requestid.ConfigDefault.ContextKey),
		}).Info("Request")
		return nil
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,HEAD,OPTIONS",
	}))

	api := app.Group("/api")

	api.Get("/news", func(c *fiber.Ctx) error {
		filter := NewsFilter{
			Topic: strings.TrimSpace(c.Query("topic")),
			Query: c.Query("q"),
			Limit: config.MaxItems,
		}
		if filter.Topic != "" {
			if _, ok := config.Ruleset.Get(filter.Topic); !ok {
				return fiber.NewError(fiber.StatusBadRequest, "Unknown topic")
			}
		}

		items, err := config.News.News(c.UserContext())
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error fetching news")

			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: newsErrorMessage})
		}

		return c.JSON(models.NewsResponse{Items: filter.Apply(items)})
	})

	api.Get("/verses", func(c *fiber.Ctx) error {
		return c.JSON(config.Ruleset.Verses())
	})

	api.Get("/topics/:key", func(c *fiber.Ctx) error {
		topic, ok := config.Ruleset.Get(c.Params("key"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "Unknown topic")
		}
		return c.JSON(config.Ruleset.TopicVerses(topic))
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if config.StaticDir != "" {
		app.Use("/", filesystem.New(filesystem.Config{
			Browse: false,
			Index:  "index.html",
			Root:   http.Dir(config.StaticDir),
		}))
	}

	return app
}

// errorHandler keeps error bodies generic. Only *fiber.Error messages reach the client.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}

	log.WithFields(log.Fields{
		"path":  c.Path(),
		"error": err,
	}).Error("Unhandled error")

	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Internal server error"})
}
