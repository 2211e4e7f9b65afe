// PadKeys - dual trackpad typing engine
// Turns a pair of touch surfaces into a chord-free split keyboard.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"padkeys/internal/api"
	"padkeys/internal/autostart"
	"padkeys/internal/config"
	"padkeys/internal/dispatch"
	"padkeys/internal/hotkey"
	"padkeys/internal/input"
	"padkeys/internal/keymap"
	"padkeys/internal/network"
	"padkeys/internal/touch"
	"padkeys/internal/tray"
)

var (
	version    = "0.1.0"
	configPath = flag.String("config", "", "Path to config file (default: per-user config dir)")
	noTray     = flag.Bool("no-tray", false, "Run without the system tray")
	writeCfg   = flag.Bool("write-config", false, "Write the default config file and exit")
	showVer    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("padkeys version %s\n", version)
		return
	}

	cfgMgr, err := newConfigManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	if *writeCfg {
		if err := cfgMgr.Save(); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Wrote default config to %s\n", cfgMgr.Path())
		return
	}

	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	runService(cfgMgr)
}

func newConfigManager() (*config.Manager, error) {
	if *configPath != "" {
		return config.NewManagerAt(*configPath), nil
	}
	return config.NewManager()
}

func runService(cfgMgr *config.Manager) {
	log.Printf("PadKeys %s starting...", version)

	injector, err := input.NewInjector()
	if err != nil {
		log.Fatalf("Failed to create input injector: %v", err)
	}
	defer injector.Close()

	publisher := touch.NewPublisher()
	coord := dispatch.New(injector, publisher)

	// Config -> engine wiring: applied now and on every change or reload.
	if err := applyConfig(cfgMgr, coord); err != nil {
		log.Fatalf("Failed to apply config: %v", err)
	}
	cfgMgr.RegisterChangeCallback(func() {
		if err := applyConfig(cfgMgr, coord); err != nil {
			log.Printf("Config: rejected update: %v", err)
		}
	})

	watcher, err := config.NewWatcher(cfgMgr)
	if err != nil {
		log.Printf("Warning: config watcher unavailable: %v", err)
	} else {
		defer watcher.Stop()
	}

	cfg := cfgMgr.Get()

	// Emergency chord: watches the keys the engine itself synthesizes and
	// cuts typing off when the configured chord lands.
	chords := hotkey.NewManager()
	chords.Register(cfg.General.EscapeChord, func() {
		log.Printf("Escape chord pressed, disabling typing")
		coord.SetTypingEnabled(false)
	})
	coord.OnKeyState(func(a keymap.Action, down bool) {
		for _, name := range keymap.ModifierNames(a.Modifiers) {
			chords.UpdateState(name, down)
		}
		chords.UpdateState(keymap.CodeLabel(a.Code), down)
	})

	// Touch frame intake from the device bridge.
	receiver := network.NewFrameReceiver(cfg.General.FramePort)
	receiver.OnFrame = coord.ProcessFrame
	receiver.OnDeviceStatus = func(side touch.Side, connected bool) {
		coord.DeviceStatus(side, connected)
		if !connected {
			chords.Reset()
		}
	}
	if err := receiver.Start(); err != nil {
		log.Fatalf("Failed to start frame receiver: %v", err)
	}
	defer receiver.Stop()

	var apiServer *api.Server
	if cfg.General.APIEnabled {
		apiServer = api.NewServer(cfgMgr, coord, publisher)
		coord.OnDebugHit(func(h dispatch.Hit) { apiServer.BroadcastHit(h, false) })
		coord.OnEditHit(func(h dispatch.Hit) { apiServer.BroadcastHit(h, true) })
		go func() {
			if err := apiServer.Start(cfg.General.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	syncAutostart(cfg.General.StartOnBoot)

	if *noTray {
		waitForSignal()
		log.Println("PadKeys shutting down...")
		return
	}

	runTray(cfgMgr, coord, apiServer)
	log.Println("PadKeys shutting down...")
}

// applyConfig rebuilds the key table, layouts and thresholds from the current
// configuration and swaps them into the running engine.
func applyConfig(cfgMgr *config.Manager, coord *dispatch.Coordinator) error {
	cfg := cfgMgr.Get()

	table, err := cfg.BuildTable()
	if err != nil {
		return err
	}
	for side := touch.Side(0); side < touch.NumSides; side++ {
		l, err := cfg.BuildLayout(side)
		if err != nil {
			return err
		}
		if err := coord.SetLayout(side, l); err != nil {
			return err
		}
	}

	coord.SetTable(table)
	coord.SetThresholds(cfg.Thresholds.Thresholds())
	coord.SetMouseTakeover(cfg.General.MouseTakeover)
	coord.SetTapClick(cfg.General.TapClick)
	coord.SetChordalShift(cfg.General.ChordalShift)
	coord.SetHaptics(cfg.General.Haptics)
	coord.SetDebugHits(cfg.General.DebugHits)
	coord.SetPointerScale(cfg.General.PointerScale)
	coord.SetTypingEnabled(cfg.General.TypingEnabled)
	return nil
}

func syncAutostart(enabled bool) {
	if enabled == autostart.IsEnabled() {
		return
	}
	var err error
	if enabled {
		err = autostart.Enable()
	} else {
		err = autostart.Disable()
	}
	if err != nil {
		log.Printf("Warning: autostart update failed: %v", err)
	}
}

// runTray builds the tray menu and blocks until quit. On macOS the systray
// loop must own the main goroutine.
func runTray(cfgMgr *config.Manager, coord *dispatch.Coordinator, apiServer *api.Server) {
	t := tray.New("PadKeys - trackpad typing engine")

	typingItem := t.AddMenuItem("Typing Enabled", func() {
		coord.SetTypingEnabled(!coord.TypingEnabled())
		if apiServer != nil {
			apiServer.BroadcastStatus()
		}
	})
	layerItem := t.AddMenuItem("Layer: 0", nil)
	t.AddSeparator()
	bootItem := t.AddMenuItem("Start on Login", func() {
		cfg := cfgMgr.Get()
		next := *cfg
		next.General.StartOnBoot = !cfg.General.StartOnBoot
		cfgMgr.Set(&next)
		if err := cfgMgr.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
		syncAutostart(next.General.StartOnBoot)
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	// Keep the menu in sync with engine state.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.SetItemChecked(typingItem, coord.TypingEnabled())
				t.SetItemTitle(layerItem, fmt.Sprintf("Layer: %d", coord.ActiveLayer()))
				t.SetItemChecked(bootItem, cfgMgr.Get().General.StartOnBoot)
			case <-done:
				return
			}
		}
	}()

	go func() {
		waitForSignal()
		t.Stop()
	}()

	t.Run()
	close(done)
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
