package scrim

import (
	"github.com/quailrun-gg/scrimsync/internal/config"
	"github.com/quailrun-gg/scrimsync/internal/discord"
	"github.com/quailrun-gg/scrimsync/internal/store"
	"github.com/quailrun-gg/scrimsync/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		st := do.MustInvoke[store.Store](i)
		dc := do.MustInvoke[discord.Client](i)
		notify := do.MustInvoke[webhook.Sender](i)
		return NewManager(cfg, st, dc, notify), nil
	})
}
