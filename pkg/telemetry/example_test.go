package telemetry_test

import (
	"context"
	"fmt"

	"github.com/cerberus/cerberus/pkg/telemetry"
)

func ExampleEventPublisher_Subscribe() {
	cfg := telemetry.DefaultConfig().Events
	cfg.EnableAsync = false

	events, err := telemetry.NewEventPublisher(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer events.Shutdown(context.Background())

	events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Data["changes"])
	}, telemetry.FilterByType(telemetry.EventTypeConfigReloaded))

	_ = events.PublishConfigLoaded("cerberus.toml", 12, 0)
	_ = events.PublishConfigReloaded("cerberus.toml", 3)

	// Output: config.reloaded 3
}

func ExampleDefaultConfig() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = false

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.ServiceName, cfg.Tracing.Enabled, cfg.Logging.Format)

	// Output: cerberus false console
}
