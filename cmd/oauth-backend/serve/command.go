package serve

import (
	"github.com/spf13/cobra"

	"github.com/kerliix/oauth-backend/internal/business"
	"github.com/kerliix/oauth-backend/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"serve",
		"Kerliix OAuth backend API server",
		"Runs the public HTTP API implementing the authorization code flow with PKCE against the Kerliix identity service.",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
