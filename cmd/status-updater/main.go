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

	"reach-out/healthz"
	"reach-out/updater"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/sendgrid/sendgrid-go"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

var (
	debugListen       = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	recheckPeriod     = flag.Duration("recheck-period", 0, "Time between scans. 0 runs a single pass and exits.")
	dataProject       = flag.String("data-project", os.Getenv("REACHOUT_DATA_PROJECT"), "GCP project that contains the application state.")
	sendgridKeySecret = flag.String("sendgrid-key-secret", os.Getenv("REACHOUT_SENDGRID_KEY_SECRET"), "GCP Secret Manager secret name that contains the Sendgrid API key. Empty disables archive notification emails.")
	dryRun            = flag.Bool("dry-run", false, "Log planned transitions without writing them.")
)

func main() {
	if err := godotenv.Load(); err != nil {
		glog.Infof("No .env file loaded: %v", err)
	}

	flag.Parse()

	glog.Infof("flags:")
	glog.Infof("debug-listen: %v", *debugListen)
	glog.Infof("recheck-period: %v", *recheckPeriod)
	glog.Infof("data-project: %v", *dataProject)
	glog.Infof("sendgrid-key-secret: %v", *sendgridKeySecret)
	glog.Infof("dry-run: %v", *dryRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

func do(ctx context.Context) error {
	var sg *sendgrid.Client
	if *sendgridKeySecret != "" {
		var err error
		sg, err = newSendgridClient(ctx)
		if err != nil {
			return fmt.Errorf("while creating Sendgrid client: %w", err)
		}
	}

	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	up := updater.New(fstore, sg, *recheckPeriod, *dryRun)

	if *recheckPeriod == 0 {
		// Single-pass mode for cron-style deployments.
		return up.Run(ctx)
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
		if err := debugServer.ListenAndServe(); err != nil {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	go func() {
		up.Run(ctx)
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	glog.Flush()

	return nil
}

func newSendgridClient(ctx context.Context) (*sendgrid.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secretClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating Secret Manager client: %w", err)
	}
	defer secretClient.Close()

	resp, err := secretClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", *dataProject, *sendgridKeySecret),
	})
	if err != nil {
		return nil, fmt.Errorf("while pulling secret: %w", err)
	}

	return sendgrid.NewSendClient(string(resp.GetPayload().GetData())), nil
}
