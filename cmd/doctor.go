package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/discordlite/internal/config"
	"github.com/nextlevelbuilder/discordlite/internal/gateway"
	"github.com/nextlevelbuilder/discordlite/internal/secrets"
	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, secret storage and gateway connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) {
	fmt.Println("discordlite doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(styleWarn.Render(" (NOT FOUND, using defaults)"))
	} else {
		fmt.Println(styleOK.Render(" (OK)"))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Secrets:")
	checkSecrets(cfg)

	fmt.Println()
	fmt.Println("  Gateway:")
	checkGateway(ctx, cfg)

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkSecrets(cfg *config.Config) {
	fmt.Printf("    %-12s %s\n", "Backend:", cfg.Secrets.Backend)
	if cfg.Secrets.Backend == secrets.BackendFile {
		fmt.Printf("    %-12s %s\n", "Path:", cfg.Secrets.Path)
	}
	store, err := secrets.Open(secretsOptions(cfg))
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", styleWarn.Render(err.Error()))
		return
	}
	_, ok, err := store.Retrieve(secrets.SessionKey)
	switch {
	case err != nil:
		fmt.Printf("    %-12s %s\n", "Status:", styleWarn.Render("unreadable: "+err.Error()))
	case ok:
		fmt.Printf("    %-12s %s\n", "Session:", styleOK.Render("stored"))
	default:
		fmt.Printf("    %-12s %s\n", "Session:", "none (run `discordlite login`)")
	}
}

// checkGateway dials the gateway and sends a ping. Any response, even an
// error frame, means the gateway is up.
func checkGateway(ctx context.Context, cfg *config.Config) {
	client, err := gateway.New(gatewayConfig(cfg))
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Endpoint:", styleWarn.Render(err.Error()))
		return
	}
	defer client.Close()
	fmt.Printf("    %-12s %s\n", "Endpoint:", client.URL())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	err = client.Call(ctx, protocol.MethodPing, nil, nil)
	if err != nil && !gateway.Reachable(err) {
		fmt.Printf("    %-12s %s\n", "Status:", styleWarn.Render("unreachable: "+formatError(err)))
		return
	}
	fmt.Printf("    %-12s %s (%s)\n", "Status:", styleOK.Render("reachable"), time.Since(start).Round(time.Millisecond))
}
