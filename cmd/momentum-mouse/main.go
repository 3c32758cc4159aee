// Command momentum-mouse is the daemon entry point: it assembles a
// validated Config, the virtual-device emitters, the capture loop and
// the inertia engine, wires them together, and runs until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"momentum-mouse/internal/capture"
	"momentum-mouse/internal/config"
	"momentum-mouse/internal/detect"
	"momentum-mouse/internal/emit"
	"momentum-mouse/internal/inertia"
	"momentum-mouse/internal/queue"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "momentum-mouse [DEVICE_PATH]",
		Short: "Turn physical mouse-wheel notches into inertial touchpad pans",
		Long: "momentum-mouse intercepts scroll-wheel events from a mouse and re-emits " +
			"them as smooth, inertial two-finger touchpad gestures on a virtual device.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runRoot,
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	deviceArg := ""
	if len(args) == 1 {
		deviceArg = args[0]
	}

	cfg, err := config.Load(cmd.Flags(), deviceArg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if noAutoDetect, _ := cmd.Flags().GetBool("no-auto-detect"); !noAutoDetect {
		if cfg.ScrollDirection == config.DirectionTraditional {
			if dir, ok := detect.DetectWithTimeout(detect.GsettingsDirectionDetector{}); ok {
				log.Infof("auto-detected scroll direction: %s", dir)
				cfg.ScrollDirection = dir
			}
		}
	}
	if cfg.DevicePath == "" || !looksLikeDevicePath(cfg.DevicePath) {
		resolved, err := detect.EvdevResolver{}.Resolve(cfg.DevicePath)
		if err != nil {
			return fmt.Errorf("resolve device: %w", err)
		}
		cfg.DevicePath = resolved
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if cfg.DebugLevel > 0 {
		log.SetLevel(log.DebugLevel)
	}

	if daemonize, _ := cmd.Flags().GetBool("daemon"); daemonize && os.Getenv("MOMENTUM_MOUSE_DAEMONIZED") == "" {
		return reexecDetached()
	}

	return run(cfg)
}

func looksLikeDevicePath(p string) bool {
	return len(p) > 0 && p[0] == '/'
}

// reexecDetached implements --daemon by re-executing the current process
// in its own session, detached from the controlling terminal, then
// exiting the foreground process. No daemonization library appears
// anywhere in the reference corpus, so this stays on syscall.SysProcAttr
// rather than adopting one.
func reexecDetached() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}
	cmd := os.Args[1:]
	proc, err := os.StartProcess(exe, append([]string{exe}, cmd...), &os.ProcAttr{
		Env:   append(os.Environ(), "MOMENTUM_MOUSE_DAEMONIZED=1"),
		Files: []*os.File{nil, nil, nil},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return fmt.Errorf("daemonize: start detached process: %w", err)
	}
	log.Infof("daemonized as pid %d", proc.Pid)
	return nil
}

// run builds the pipeline and blocks until SIGINT/SIGTERM.
func run(cfg config.Config) error {
	wheel, touch, err := buildEmitters(cfg)
	if err != nil {
		return err
	}
	defer destroyEmitters(wheel, touch)

	// touch is handed through the inertia.TouchEmitter interface only when
	// it was actually built; passing a typed-nil *emit.Touch straight
	// through would produce a non-nil interface holding a nil pointer.
	var touchEmitter inertia.TouchEmitter
	if touch != nil {
		touchEmitter = touch
	}

	q := queue.NewScroll()
	eng := inertia.New(cfg, q, wheel, touchEmitter)

	loop, err := capture.New(cfg, eng, wheel)
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	defer loop.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)

	captureErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		captureErr <- loop.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	log.Infof("momentum-mouse running on %s (multitouch=%v axis=%s direction=%s)",
		cfg.DevicePath, cfg.UseMultitouch, cfg.ScrollAxis, cfg.ScrollDirection)

	wg.Wait()
	if err := <-captureErr; err != nil {
		return fmt.Errorf("capture loop: %w", err)
	}
	return nil
}

func buildEmitters(cfg config.Config) (*emit.Wheel, *emit.Touch, error) {
	wheel, err := emit.NewWheel()
	if err != nil {
		return nil, nil, fmt.Errorf("create wheel device: %w", err)
	}
	if !cfg.UseMultitouch {
		return wheel, nil, nil
	}
	touch, err := emit.NewTouch(cfg)
	if err != nil {
		_ = wheel.Destroy()
		return nil, nil, fmt.Errorf("create touch device: %w", err)
	}
	return wheel, touch, nil
}

func destroyEmitters(wheel *emit.Wheel, touch *emit.Touch) {
	if touch != nil {
		if err := touch.Destroy(); err != nil {
			log.Errorf("destroy touch device: %v", err)
		}
	}
	if wheel != nil {
		if err := wheel.Destroy(); err != nil {
			log.Errorf("destroy wheel device: %v", err)
		}
	}
}
