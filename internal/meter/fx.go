package meter

import (
	"github.com/smallbiznis/estatebill/internal/meter/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("meter.repository",
	fx.Provide(repository.Provide),
)
