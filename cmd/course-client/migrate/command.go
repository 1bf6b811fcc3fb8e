package migrate

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/course-client/internal/business"
	"github.com/openkcm/course-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Course Client local state migrations",
		"Course Client local state migrations create the tables of the SQL storage backends",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
