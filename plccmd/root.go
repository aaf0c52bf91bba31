// package plccmd implements the plcvm command line tool.
package plccmd

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-isatty"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"plcvm.org/plcvm/plcimg"
	"plcvm.org/plcvm/plcss"
)

// LogLevelEnv is the environment variable which sets the log level.
const LogLevelEnv = "PLCVM_LOG_LEVEL"

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "PLC virtual machine",
}, map[star.Symbol]star.Command{
	// single programs
	"run":          runCmd,
	"trace":        traceCmd,
	"disasm":       disasmCmd,
	"selftest":     selftestCmd,
	"build-vector": buildVectorCmd,

	// supervised units
	"create": create,
	"list":   list,
	"drop":   drop,
	"reset":  reset,
	"apply":  apply,
	"faults": faults,
	"serve":  serve,
})

var DBParam = star.Param[*sqlx.DB]{
	Name:    "db",
	Default: star.Ptr("plcvm.db"),
	Parse: func(x string) (*sqlx.DB, error) {
		db, err := plcss.OpenDB(x)
		if err != nil {
			return nil, err
		}
		if err := plcss.SetupDB(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	},
}

var ListenerParam = star.Param[net.Listener]{
	Name:    "l",
	Default: star.Ptr("127.0.0.1:6868"),
	Parse: func(x string) (net.Listener, error) {
		return net.Listen("tcp", x)
	},
}

var imageParam = star.Param[*plcimg.Image]{
	Name:  "image",
	Parse: plcimg.ReadFile,
}

var stepLimitParam = star.Param[uint64]{
	Name:    "step-limit",
	Default: star.Ptr(strconv.FormatUint(plcss.DefaultStepLimit, 10)),
	Parse: func(x string) (uint64, error) {
		return strconv.ParseUint(x, 10, 64)
	},
}

var periodParam = star.Param[time.Duration]{
	Name:    "period",
	Default: star.Ptr(plcss.DefaultPeriod.String()),
	Parse:   time.ParseDuration,
}

var policyParam = star.Param[plcss.FaultPolicy]{
	Name:    "policy",
	Default: star.Ptr(string(plcss.PolicyHalt)),
	Parse:   plcss.ParseFaultPolicy,
}

// withLogger returns the command's context with a logger attached.
func withLogger(c star.Context) context.Context {
	return logctx.NewContext(c.Context, newLogger())
}

// newLogger returns a development logger when stderr is a terminal, and a production logger otherwise.
// The level is read from LogLevelEnv, and defaults to info.
func newLogger() *zap.Logger {
	var cfg zap.Config
	if isatty.IsTerminal(os.Stderr.Fd()) {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	lvl := zapcore.InfoLevel
	if x, ok := os.LookupEnv(LogLevelEnv); ok {
		if l, err := zapcore.ParseLevel(x); err == nil {
			lvl = l
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
