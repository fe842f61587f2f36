package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clonesync/csync/pkg/player"
)

var (
	playVideoDuration time.Duration
	playAudioDuration time.Duration
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Preview synchronized playback",
	Long: `Drive a simulated dual-track playback session for verifying sync
behavior without real media: a video track with an audio track slaved to
it, including seek, per-track delay and playback rate.

Commands inside the session:
  p              toggle play/pause
  s <ratio>      seek to a position, 0 to 1
  d <ms>         set the audio delay in milliseconds
  r <rate>       set the playback rate
  v <volume>     set the audio volume, 0 to 1
  m              toggle mute
  i              print the current position
  q              quit`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().DurationVar(&playVideoDuration, "video-duration", 2*time.Minute, "simulated video length")
	playCmd.Flags().DurationVar(&playAudioDuration, "audio-duration", 2*time.Minute, "simulated audio length")
}

func runPlay(cmd *cobra.Command, args []string) error {
	video := player.NewSimMedium(playVideoDuration.Seconds())
	audio := player.NewSimMedium(playAudioDuration.Seconds())

	p := player.New(video, logger)
	defer p.Close()
	p.LoadAudio(audio)
	p.Unlock()

	fmt.Println("Simulated playback session. Type a command and press enter (q quits).")
	printPosition(p)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit":
			return nil
		case "p":
			playing, err := p.TogglePlay()
			if err != nil {
				fmt.Printf("playback error: %v\n", err)
				continue
			}
			if playing {
				fmt.Println("playing")
			} else {
				fmt.Println("paused")
			}
		case "s":
			ratio, ok := parsePlayArg(fields, "seek ratio")
			if !ok {
				continue
			}
			p.Seek(ratio)
			printPosition(p)
		case "d":
			ms, ok := parsePlayArg(fields, "delay in milliseconds")
			if !ok {
				continue
			}
			p.SetDelay(time.Duration(ms) * time.Millisecond)
			fmt.Printf("audio delay %s\n", p.Delay())
		case "r":
			rate, ok := parsePlayArg(fields, "playback rate")
			if !ok {
				continue
			}
			p.SetRate(rate)
			fmt.Printf("rate %.2fx\n", rate)
		case "v":
			volume, ok := parsePlayArg(fields, "volume")
			if !ok {
				continue
			}
			p.SetVolume(volume)
			fmt.Printf("volume %.2f\n", volume)
		case "m":
			muted := !audio.Muted()
			p.SetMuted(muted)
			if muted {
				fmt.Println("muted")
			} else {
				fmt.Println("unmuted")
			}
		case "i":
			printPosition(p)
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func parsePlayArg(fields []string, what string) (float64, bool) {
	if len(fields) < 2 {
		fmt.Printf("missing %s\n", what)
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		fmt.Printf("bad %s: %v\n", what, err)
		return 0, false
	}
	return v, true
}

func printPosition(p *player.Player) {
	current, duration := p.Position()
	fmt.Printf("position %.1fs / %.1fs  audio=%t  delay=%s\n",
		current, duration, p.HasAudio(), p.Delay())
}
