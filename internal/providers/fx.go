package providers

import (
	"github.com/smallbiznis/estatebill/internal/providers/email"
	"github.com/smallbiznis/estatebill/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
