package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reach-out/dblayer"
	"reach-out/healthz"
	"reach-out/httpmetrics"
	"reach-out/webui"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"go.opencensus.io/trace"
)

var (
	uiListen            = flag.String("ui-listen", "0.0.0.0:8080", "Server address:port for the JSON API.")
	debugListen         = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	dataProject         = flag.String("data-project", os.Getenv("REACHOUT_DATA_PROJECT"), "GCP project that contains the application state.")
	photoBucket         = flag.String("photo-bucket", os.Getenv("REACHOUT_PHOTO_BUCKET"), "GCS bucket that stores profile photos. Empty disables photo upload.")
	googleOAuthClientID = flag.String("google-oauth-client-id", os.Getenv("REACHOUT_GOOGLE_OAUTH_CLIENT_ID"), "OAuth client ID for Sign In With Google.")
	enableTracing       = flag.Bool("enable-tracing", false, "")
	enableMetrics       = flag.Bool("enable-metrics", false, "")
)

func main() {
	// A .env file is a development convenience; in production the flags
	// and environment come from the deployment.
	if err := godotenv.Load(); err != nil {
		glog.Infof("No .env file loaded: %v", err)
	}

	flag.Parse()

	glog.Infof("flags:")
	glog.Infof("ui-listen: %v", *uiListen)
	glog.Infof("debug-listen: %v", *debugListen)
	glog.Infof("data-project: %v", *dataProject)
	glog.Infof("photo-bucket: %v", *photoBucket)
	glog.Infof("enable-tracing: %v", *enableTracing)
	glog.Infof("enable-metrics: %v", *enableMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

func do(ctx context.Context) error {
	if *enableTracing {
		exporter, err := stackdriver.NewExporter(stackdriver.Options{})
		if err != nil {
			return fmt.Errorf("while initializing tracing: %w", err)
		}
		trace.RegisterExporter(exporter)
	}

	if *enableMetrics {
		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			MetricPrefix:      "reachout",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("while initializing metrics: %w", err)
		}
		exporter.StartMetricsExporter()
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	var bucket *storage.BucketHandle
	if *photoBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("while creating GCS client: %w", err)
		}
		bucket = gcsClient.Bucket(*photoBucket)
	}

	db := dblayer.New(fstore, bucket, *photoBucket, *googleOAuthClientID)

	ui := webui.New(db)
	uiServeMux := http.NewServeMux()
	ui.Register(uiServeMux)

	metricsWrapper := httpmetrics.New(uiServeMux)
	metricsWrapper.RegisterMetrics()

	uiServer := &http.Server{
		Addr:    *uiListen,
		Handler: metricsWrapper,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", healthz.New())
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := uiServer.ListenAndServe(); err != nil {
			glog.Fatalf("UI server died: %v", err)
		}
	}()

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	glog.Flush()

	return nil
}
