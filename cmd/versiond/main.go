package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	flag "github.com/spf13/pflag"

	"sehlabs.com/versionstore/internal/version"
)

func fatal(code int, m string) {
	fmt.Fprintln(os.Stderr, m)
	os.Exit(code)
}

func fatalf(code int, format string, a ...interface{}) {
	w := os.Stderr
	if _, err := fmt.Fprintf(w, format, a...); err == nil {
		fmt.Fprintln(w)
	}
	os.Exit(code)
}

var (
	serverAddress      net.IP
	serverPort         string
	tlsCertificateFile string
	tlsPrivateKeyFile  string
	chainCapacity      int
	recycleLimit       int
	logLevelName       string
)

func init() {
	flag.IPVar(&serverAddress, "server-address", nil,
		`IP address on which to serve HTTP requests`)
	flag.StringVar(&serverPort, "server-port", "",
		`Port on which to serve HTTP requests`)
	flag.StringVar(&tlsCertificateFile, "tls-cert-file", "",
		`File containing the X.509 certificates with which to serve HTTPS,
containing certificates for this server, any intermediate CAs, and the CA`)
	flag.StringVar(&tlsPrivateKeyFile, "tls-private-key-file", "",
		`File containing the X.509 private key for the first X.509 certificate
in --tls-cert-file`)
	flag.IntVar(&chainCapacity, "chain-capacity", 32,
		`Number of versions each record's chain retains before uploads evict the oldest`)
	flag.IntVar(&recycleLimit, "recycle-limit", 256,
		`Maximum number of released payloads retained for reuse; zero disables recycling`)
	flag.StringVar(&logLevelName, "log-level", "INFO",
		`Log level: one of DEBUG, INFO, WARN, or ERROR`)
}

var logLevel = new(slog.LevelVar)

func configureLogging(levelName string) error {
	switch levelName {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "", "INFO":
		logLevel.Set(slog.LevelInfo)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	default:
		return fmt.Errorf("unrecognized log level %q", levelName)
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}

type tlsConfig struct {
	certificateFilePath string
	privateKeyFilePath  string
}

func joinIPAddressAndPort(address net.IP, port string) string {
	var host string
	var empty net.IP
	if !address.Equal(empty) {
		host = address.String()
	}
	return net.JoinHostPort(host, port)
}

func runHTTPServer(address net.IP, port string, tlsConf *tlsConfig, handler http.Handler, stop <-chan struct{}) error {
	server := &http.Server{
		Addr:    joinIPAddressAndPort(address, port),
		Handler: handler,
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-stop
		// Don't bother imposing a timeout here.
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shut down HTTP server", "error", err)
		}
	}()
	var err error
	if tlsConf != nil {
		err = server.ListenAndServeTLS(tlsConf.certificateFilePath, tlsConf.privateKeyFilePath)
	} else {
		err = server.ListenAndServe()
	}
	if err != http.ErrServerClosed {
		return err
	}
	wg.Wait()
	return nil
}

func main() {
	flag.Parse()

	if err := configureLogging(logLevelName); err != nil {
		fatalf(2, "%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var serverTLSConfig *tlsConfig
	if len(tlsCertificateFile) > 0 {
		if len(tlsPrivateKeyFile) == 0 {
			fatal(2, "--tls-private-key-file must be nonempty when --tls-cert-file is specified")
		}
		serverTLSConfig = &tlsConfig{
			certificateFilePath: tlsCertificateFile,
			privateKeyFilePath:  tlsPrivateKeyFile,
		}
	} else if len(tlsPrivateKeyFile) > 0 {
		fatal(2, "--tls-cert-file must be nonempty when --tls-private-key-file is specified")
	}

	if len(serverPort) == 0 {
		if serverTLSConfig != nil {
			serverPort = "443"
		} else {
			serverPort = "80"
		}
	}
	store, err := version.MakeStore[*row](
		version.WithChainCapacity(chainCapacity),
		version.WithRecycleLimit(recycleLimit),
	)
	if err != nil {
		fatalf(1, "Failed to create version store: %v", err)
	}
	slog.Info("serving version store",
		"address", joinIPAddressAndPort(serverAddress, serverPort),
		"chain_capacity", chainCapacity,
		"recycle_limit", recycleLimit)
	handler := makeHandler(store)
	if err := runHTTPServer(serverAddress, serverPort, serverTLSConfig, handler, ctx.Done()); err != nil {
		fatalf(1, "HTTP server failed: %v", err)
	}
}
