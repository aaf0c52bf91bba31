// package plchui serves a web UI and a JSON API for inspecting and driving the units in a System.
package plchui

import (
	"context"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"go.brendoncarroll.net/exp/slices2"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"plcvm.org/plcvm/plcss"
	"plcvm.org/plcvm/plctrace"
)

const defaultFaultLimit = 100

func Serve(ctx context.Context, l net.Listener, sys *plcss.System) error {
	return New(sys).Serve(ctx, l)
}

// devPath is the path to the views from the directory the application is run.
// when it is empty the embeded views are used.
var devPath = "" // "./plcss/plchui"

type Server struct {
	sys   *plcss.System
	app   *fiber.App
	bgCtx context.Context
}

func New(sys *plcss.System) *Server {
	s := &Server{sys: sys, bgCtx: context.Background()}

	var renderer *html.Engine
	if devPath != "" {
		renderer = html.New(devPath, ".html")
		renderer.Reload(true)
	} else {
		renderer = html.NewFileSystem(http.FS(viewFS), ".html")
	}
	renderer.AddFunc("hexDump", func(x []byte) string {
		return hex.Dump(x)
	})
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Views:                 renderer,
		ErrorHandler:          errorHandler,
	})
	// views
	app.Get("/", s.home)
	app.Get("/unit/:unitID", s.unitPage)
	app.Post("/unit/:unitID/reset", s.resetUnitForm)
	app.Post("/unit/:unitID/drop", s.dropUnitForm)

	v1 := app.Group("/v1")
	v1.Get("/units", s.listUnits)
	v1.Get("/units/:unitID", s.getUnit)
	v1.Get("/units/:unitID/disasm", s.disasm)
	v1.Get("/units/:unitID/faults", s.faults)
	v1.Post("/units/:unitID/run", s.runUnit)
	v1.Post("/units/:unitID/reset", s.resetUnit)
	v1.Use("/units/:unitID/trace", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/units/:unitID/trace", websocket.New(s.handleTrace))
	s.app = app
	return s
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.bgCtx = ctx
	logctx.Infof(ctx, "serving on %v", l.Addr())
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			logctx.Error(ctx, "shutting down", zap.Error(err))
		}
	}()
	return s.app.Listener(l)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &plcss.ErrUnitNotFound{}):
		code = fiber.StatusNotFound
	case errors.As(err, &plcss.ErrUnitHalted{}):
		code = fiber.StatusConflict
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) home(c *fiber.Ctx) error {
	ctx := c.Context()
	units, err := s.sys.List(ctx)
	if err != nil {
		return err
	}
	return c.Render("view/home", struct {
		Hostname string
		Units    []unitInfo
	}{
		Hostname: c.Hostname(),
		Units:    slices2.Map(units, makeUnitInfo),
	}, "view/layout")
}

func (s *Server) unitPage(c *fiber.Ctx) error {
	ctx := c.Context()
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	faults, err := u.Faults(ctx, defaultFaultLimit)
	if err != nil {
		return err
	}
	cfgData, err := json.MarshalIndent(u.Config(), "", "  ")
	if err != nil {
		return err
	}
	var disasm strings.Builder
	if err := u.Disassemble(&disasm); err != nil {
		return err
	}
	return c.Render("view/unit", struct {
		Hostname string
		Unit     unitInfo
		Config   string
		Disasm   string
		Faults   []plcss.Fault
	}{
		Hostname: c.Hostname(),
		Unit:     makeUnitInfo(u),
		Config:   string(cfgData),
		Disasm:   disasm.String(),
		Faults:   faults,
	}, "view/layout")
}

func (s *Server) resetUnitForm(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	if err := u.Reset(c.Context()); err != nil {
		return err
	}
	return c.RedirectBack("/")
}

func (s *Server) dropUnitForm(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	if err := s.sys.Drop(c.Context(), u.ID()); err != nil {
		return err
	}
	return c.Redirect("/")
}

func (s *Server) listUnits(c *fiber.Ctx) error {
	units, err := s.sys.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(slices2.Map(units, makeUnitInfo))
}

func (s *Server) getUnit(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	return c.JSON(makeUnitInfo(u))
}

func (s *Server) disasm(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return u.Disassemble(c)
}

func (s *Server) faults(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", defaultFaultLimit)
	if limit < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be positive")
	}
	faults, err := u.Faults(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(slices2.Map(faults, makeFaultInfo))
}

// runUnit runs a single scan cycle.
func (s *Server) runUnit(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	rte, err := u.RunOnce(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(runResult{Outcome: rte.String(), Unit: makeUnitInfo(u)})
}

func (s *Server) resetUnit(c *fiber.Ctx) error {
	u, err := s.lookupUnit(c)
	if err != nil {
		return err
	}
	if err := u.Reset(c.Context()); err != nil {
		return err
	}
	return c.JSON(makeUnitInfo(u))
}

func (s *Server) lookupUnit(c *fiber.Ctx) (*plcss.Unit, error) {
	uid, err := plcss.ParseUnitID(c.Params("unitID"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return s.sys.Get(c.Context(), uid)
}

// handleTrace runs one scan cycle of the unit, sending a record for every step.
// The last message holds the outcome of the cycle.
func (s *Server) handleTrace(c *websocket.Conn) {
	ctx := s.bgCtx
	unitID := c.Params("unitID")
	logctx.Info(ctx, "started websocket", zap.String("unit", unitID))
	defer logctx.Info(ctx, "closing websocket", zap.String("unit", unitID))

	if err := func() error {
		uid, err := plcss.ParseUnitID(unitID)
		if err != nil {
			return err
		}
		u, err := s.sys.Get(ctx, uid)
		if err != nil {
			return err
		}
		// the unit is locked during Trace, so nothing is written until it returns
		var recs []plctrace.Record
		rte, err := u.Trace(ctx, func(rec plctrace.Record) error {
			recs = append(recs, rec)
			return nil
		})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := c.WriteJSON(rec); err != nil {
				return err
			}
		}
		return c.WriteJSON(traceEnd{Outcome: rte.String(), Done: true})
	}(); err != nil {
		logctx.Error(ctx, "handling websocket", zap.Error(err))
		c.WriteJSON(traceEnd{Error: err.Error(), Done: true})
		return
	}
}

//go:embed view/*
var viewFS embed.FS

type unitInfo struct {
	ID        plcss.UnitID     `json:"id"`
	Name      string           `json:"name"`
	Image     string           `json:"image"`
	ImageName string           `json:"image_name"`
	Config    plcss.UnitConfig `json:"config"`
	CreatedAt time.Time        `json:"created_at"`

	Halted bool     `json:"halted"`
	Cycles uint64   `json:"cycles"`
	Last   string   `json:"last"`
	Cursor int      `json:"cursor"`
	Stack  hexBytes `json:"stack"`
	Memory hexBytes `json:"memory"`
}

func makeUnitInfo(u *plcss.Unit) unitInfo {
	st := u.Status()
	last := ""
	if st.Cycles > 0 {
		last = st.Last.String()
	}
	return unitInfo{
		ID:        u.ID(),
		Name:      u.Name(),
		Image:     u.ImageID().String(),
		ImageName: u.Image().Name,
		Config:    u.Config(),
		CreatedAt: u.CreatedAt(),

		Halted: st.Halted,
		Cycles: st.Cycles,
		Last:   last,
		Cursor: st.Cursor,
		Stack:  st.Stack,
		Memory: st.Memory,
	}
}

type faultInfo struct {
	plcss.Fault
	Time string `json:"time"`
}

func makeFaultInfo(f plcss.Fault) faultInfo {
	return faultInfo{Fault: f, Time: f.Timestamp()}
}

type runResult struct {
	Outcome string   `json:"outcome"`
	Unit    unitInfo `json:"unit"`
}

type traceEnd struct {
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done"`
}

// hexBytes is encoded as a hex string in JSON
type hexBytes []byte

func (x hexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(x)), nil
}

func (x *hexBytes) UnmarshalText(data []byte) error {
	b, err := hex.DecodeString(string(data))
	if err != nil {
		return err
	}
	*x = b
	return nil
}
