// Package autoload initializes the global logger from the LOG_* environment
// on import:
//
//	import _ "github.com/tanpawarit/Plant-Conversational-Hub/pkg/logger/autoload"
package autoload

import (
	configx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/config"
	logx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
