package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/api"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/auth"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/devices"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/iotagent"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/keyrock"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long: `Start the gateway server. It exposes login and token validation, the
device credential lifecycle, and authenticated pass-through to Keyrock user,
role and permission administration and to IoT Agent provisioning.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 60 * time.Second // upstream exchanges can be slow
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 65 * time.Second // must exceed serverRequestTimeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	flags := serveCmd.Flags()
	flags.String("address", ":8080", "Address to listen on")
	flags.String("keyrock-url", "", "Base URL of the Keyrock identity manager")
	flags.String("keyrock-app-id", "", "Keyrock application ID owning devices and roles")
	flags.String("keyrock-client-id", "", "OAuth2 client ID for device trust tokens")
	flags.String("keyrock-client-secret", "", "OAuth2 client secret for device trust tokens")
	flags.String("iot-agent-url", "", "Base URL of the IoT Agent north port")
	flags.String("fiware-service", "openiot", "Tenant service stamped on IoT Agent requests")
	flags.String("fiware-service-path", "/", "Tenant service path stamped on IoT Agent requests")
	flags.String("jwt-signing-key", "", "HMAC key for local tokens (at least 32 bytes)")
	flags.Duration("token-ttl", time.Hour, "Lifetime of local tokens")
	flags.String("session-store", "memory", "Session store backend (memory or redis)")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis session store")
	flags.String("redis-password", "", "Redis password for the redis session store")
	flags.Int("redis-db", 0, "Redis database for the redis session store")

	if err := viper.BindPFlags(flags); err != nil {
		logger.Fatalf("Failed to bind serve flags: %v", err)
	}
	viper.SetEnvPrefix("SSIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	address := viper.GetString("address")

	identity, err := keyrock.NewClient(keyrock.Config{
		BaseURL:      viper.GetString("keyrock-url"),
		AppID:        viper.GetString("keyrock-app-id"),
		ClientID:     viper.GetString("keyrock-client-id"),
		ClientSecret: viper.GetString("keyrock-client-secret"),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create keyrock client: %w", err)
	}

	agent, err := iotagent.NewClient(iotagent.Config{
		BaseURL:     viper.GetString("iot-agent-url"),
		Service:     viper.GetString("fiware-service"),
		ServicePath: viper.GetString("fiware-service-path"),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create iot agent client: %w", err)
	}

	sessions, err := session.NewStore(ctx, session.Config{
		Type:          session.Type(viper.GetString("session-store")),
		RedisAddr:     viper.GetString("redis-addr"),
		RedisPassword: viper.GetString("redis-password"),
		RedisDB:       viper.GetInt("redis-db"),
	})
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer sessions.Close()

	tokens, err := auth.NewLocalTokens(auth.TokenConfig{
		SigningKey: []byte(viper.GetString("jwt-signing-key")),
		TTL:        viper.GetDuration("token-ttl"),
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	bridge := auth.NewBridge(identity, sessions, tokens)
	manager := devices.NewManager(bridge, identity)

	router := api.NewServer(api.Deps{
		Bridge:  bridge,
		Devices: manager,
		Keyrock: identity,
		Agent:   agent,
	}, api.WithMiddlewares(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(serverRequestTimeout),
	))

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
