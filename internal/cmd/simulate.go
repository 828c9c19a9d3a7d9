package cmd

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/engine"
	"github.com/MeKo-Tech/capstripeviz/internal/navigator"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a scripted pointer/keyboard sequence against the navigator and print its trajectory",
	RunE:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

// runSimulate replays a fixed touch-drag-then-release gesture exercising the
// momentum path, followed by a keyboard month-jump, printed frame by frame
// so the navigator's state machine can be inspected without a browser.
func runSimulate(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	eng := buildEngine(1024)
	defer eng.Close()

	fmt.Println("-- dragging (touch) --")
	eng.OnPointerDown(0, 0, 0)
	eng.OnPointerMove(navigator.Touch, 40, 0, 40)
	eng.OnPointerMove(navigator.Touch, 120, 0, 80)
	eng.OnPointerUp(navigator.Touch, 100)

	printTrajectory(eng, 120)

	fmt.Println("-- keyboard: ArrowLeft --")
	eng.OnKey("ArrowLeft", false, false)
	printTrajectory(eng, 60)

	return nil
}

// printTrajectory advances the engine's animation by frames ticks at a
// fixed 16ms step, printing the navigator snapshot after each one.
func printTrajectory(eng *engine.Engine, frames int) {
	now := time.Now()
	for i := 0; i < frames; i++ {
		now = now.Add(16 * time.Millisecond)
		eng.Tick(now)
		snap := eng.Stats().Navigator
		fmt.Printf("  t=%3dms offset=%d state=%s anim=%s v=%.1f\n", (i+1)*16, snap.Offset, snap.State, snap.AnimKind, snap.Velocity)
		if snap.State == "idle" {
			break
		}
	}
}
