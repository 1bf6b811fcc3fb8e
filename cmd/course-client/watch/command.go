package watch

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/course-client/internal/business"
	"github.com/openkcm/course-client/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"watch",
		"Course Client session watcher",
		"Course Client session watcher refreshes the session list periodically and logs every change",
		buildInfo,
		cmdutils.RunAsService,
		business.WatchMain,
	)
}
