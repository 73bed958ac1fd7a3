package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/itohio/golarpix/pkg/config"
	"github.com/itohio/golarpix/pkg/larpix"
	"github.com/itohio/golarpix/pkg/report"
	"github.com/itohio/golarpix/pkg/scan"
	"github.com/itohio/golarpix/pkg/timeutil"
)

func main() {
	var (
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB2)")
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag      = flag.Bool("mock", false, "Use simulated board instead of serial port")
		listPortsFlag = flag.Bool("list-ports", false, "List available serial ports and exit")
		modeFlag      = flag.String("mode", "calibrate", "Scan mode: coarse, trim, calibrate or pulse")
		boardFlag     = flag.String("board", "", "Board preset override (pcb-5, pcb-4)")
		chipFlag      = flag.Int("chip", -1, "Index of the chip under test (overrides config)")
		channelsFlag  = flag.String("channels", "", "Comma-separated channels to scan (overrides config)")
		rangeFlag     = flag.String("range", "", "Coarse threshold range min:max:step (overrides config)")
		physicsFlag   = flag.Bool("physics", false, "Leave the chip in physics configuration after the scan")
		outputFlag    = flag.String("output", "", "Write the session to this file (.json or .yaml); stdout if empty")
	)
	flag.Parse()

	if *listPortsFlag {
		ports, err := larpix.Ports()
		if err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override configuration from the command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *boardFlag != "" {
		cfg.Board.Name = *boardFlag
	}
	if *chipFlag >= 0 {
		cfg.Board.ChipIndex = *chipFlag
	}
	if *channelsFlag != "" {
		channels, err := parseCSVIntSlice(*channelsFlag)
		if err != nil {
			log.Fatalf("Invalid -channels: %v", err)
		}
		cfg.Scan.Channels = channels
	}
	if *rangeFlag != "" {
		r, err := scan.ParseRange(*rangeFlag)
		if err != nil {
			log.Fatalf("Invalid -range: %v", err)
		}
		cfg.Scan.CoarseMin, cfg.Scan.CoarseMax, cfg.Scan.CoarseStep = r.Min, r.Max, r.Step
	}

	mode, err := parseMode(*modeFlag)
	if err != nil {
		log.Fatal(err)
	}

	var clock timeutil.Clock = timeutil.RealClock{}
	var ctrl larpix.Controller
	if *mockFlag {
		ctrl = larpix.NewMock(&cfg.Mock, clock)
	} else {
		ctrl = larpix.New(cfg.Serial.Port, cfg.Serial.BaudRate)
	}

	if err := ctrl.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer ctrl.Close()

	session, err := run(cfg, ctrl, clock, mode, *physicsFlag)
	if err != nil {
		ctrl.Close()
		log.Fatalf("Scan failed: %v", err)
	}

	if *outputFlag == "" {
		if err := session.Encode(os.Stdout, report.JSON); err != nil {
			log.Printf("Failed to write session: %v", err)
		}
		return
	}
	if err := session.Save(*outputFlag); err != nil {
		log.Printf("Failed to save session: %v", err)
		return
	}
	log.Printf("Session %s saved to %s", session.ID, *outputFlag)
}

// parseCSVIntSlice parses a comma-separated list of ints
func parseCSVIntSlice(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
