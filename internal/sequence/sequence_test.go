package sequence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type switchCall struct {
	channel light.Channel
	on      bool
}

// fakeKit plays both the light switcher and the capture driver so each
// capture can record which channels were lit when it happened.
type fakeKit struct {
	lit      map[light.Channel]bool
	switches []switchCall
	captures [][]light.Channel // lit channels at each capture

	litValue  uint8
	darkValue uint8
	capErr    error
}

func newFakeKit() *fakeKit {
	return &fakeKit{
		lit:       make(map[light.Channel]bool),
		litValue:  100,
		darkValue: 30,
	}
}

func (k *fakeKit) switchFn(ch light.Channel, on bool) error {
	k.switches = append(k.switches, switchCall{channel: ch, on: on})
	k.lit[ch] = on
	return nil
}

func (k *fakeKit) ID() string { return "fake-kit" }

func (k *fakeKit) Capture(_ context.Context, req capture.Request) (*capture.Frame, error) {
	if k.capErr != nil {
		return nil, k.capErr
	}
	var litNow []light.Channel
	for ch, on := range k.lit {
		if on {
			litNow = append(litNow, ch)
		}
	}
	k.captures = append(k.captures, litNow)

	v := k.darkValue
	if len(litNow) > 0 {
		v = k.litValue
	}
	frame := capture.NewFrame(req.Width, req.Height, req.Channel)
	for y := 0; y < req.Height; y++ {
		for x := 0; x < req.Width; x++ {
			frame.SetRGB(x, y, v, v, v)
		}
	}
	frame.Settings = req.Settings
	return frame, nil
}

func (k *fakeKit) Close() error { return nil }

func testRail(t *testing.T, kit *fakeKit, channels ...light.Channel) *light.Rail {
	t.Helper()
	set, err := light.NewSet(channels)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return light.NewRail(set, kit.switchFn, testLogger(), light.WithSettle(time.Millisecond))
}

func defaultSettings(channels ...light.Channel) capture.SettingsMap {
	m := make(capture.SettingsMap)
	for _, ch := range channels {
		m[ch] = capture.Settings{Exposure: 10 * time.Millisecond, Gain: 1.0, AWBRed: 1.0, AWBBlue: 1.0}
	}
	return m
}

func TestRun_OneChannelLitPerCapture(t *testing.T) {
	kit := newFakeKit()
	rail := testRail(t, kit, light.NIR, light.Red)
	seq := New(rail, kit, 4, 4, testLogger())

	shots := []Shot{
		{Channel: light.NIR},
		{Channel: light.Red},
	}
	frames, err := seq.Run(context.Background(), shots, defaultSettings(light.NIR, light.Red))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	wantSwitches := []switchCall{
		{light.NIR, true},
		{light.NIR, false},
		{light.Red, true},
		{light.Red, false},
	}
	if len(kit.switches) != len(wantSwitches) {
		t.Fatalf("switch calls = %v, want %v", kit.switches, wantSwitches)
	}
	for i, want := range wantSwitches {
		if kit.switches[i] != want {
			t.Errorf("switch call %d = %v, want %v", i, kit.switches[i], want)
		}
	}

	for i, litNow := range kit.captures {
		if len(litNow) != 1 {
			t.Errorf("capture %d saw %d lit channels %v, want exactly 1", i, len(litNow), litNow)
		}
	}
	if kit.captures[0][0] != light.NIR || kit.captures[1][0] != light.Red {
		t.Errorf("captures under %v, want NIR then Red", kit.captures)
	}
	if frames[0].Channel != light.NIR || frames[1].Channel != light.Red {
		t.Errorf("frame channels = %s, %s", frames[0].Channel, frames[1].Channel)
	}
}

func TestRun_SubtractRemovesAmbient(t *testing.T) {
	kit := newFakeKit()
	rail := testRail(t, kit, light.NIR)
	seq := New(rail, kit, 4, 4, testLogger())

	shots := []Shot{{Channel: light.NIR, Subtract: true}}
	frames, err := seq.Run(context.Background(), shots, defaultSettings(light.NIR))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Two captures: lit (100) then ambient reference (30).
	if len(kit.captures) != 2 {
		t.Fatalf("got %d captures, want lit + dark", len(kit.captures))
	}
	if len(kit.captures[1]) != 0 {
		t.Errorf("dark reference captured with %v lit", kit.captures[1])
	}
	if r, _, _ := frames[0].At(0, 0); r != 70 {
		t.Errorf("subtracted pixel = %d, want 100-30 = 70", r)
	}
	if frames[0].Channel != light.NIR {
		t.Errorf("subtracted frame lost channel tag: %s", frames[0].Channel)
	}
}

func TestRun_GrowthLightRestored(t *testing.T) {
	kit := newFakeKit()
	rail := testRail(t, kit, light.White, light.Growth)
	seq := New(rail, kit, 4, 4, testLogger())

	if err := rail.Set(context.Background(), light.Growth, true); err != nil {
		t.Fatalf("pre-lighting growth: %v", err)
	}
	kit.switches = nil

	shots := []Shot{{Channel: light.White}}
	if _, err := seq.Run(context.Background(), shots, defaultSettings(light.White)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []switchCall{
		{light.Growth, false},
		{light.White, true},
		{light.White, false},
		{light.Growth, true},
	}
	if len(kit.switches) != len(want) {
		t.Fatalf("switch calls = %v, want %v", kit.switches, want)
	}
	for i, w := range want {
		if kit.switches[i] != w {
			t.Errorf("switch call %d = %v, want %v", i, kit.switches[i], w)
		}
	}
	if !rail.IsLit(light.Growth) {
		t.Error("growth light not restored after the run")
	}
}

func TestRun_GrowthLightStaysOffWhenItWasOff(t *testing.T) {
	kit := newFakeKit()
	rail := testRail(t, kit, light.White, light.Growth)
	seq := New(rail, kit, 4, 4, testLogger())

	shots := []Shot{{Channel: light.White}}
	if _, err := seq.Run(context.Background(), shots, defaultSettings(light.White)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, call := range kit.switches {
		if call.channel == light.Growth {
			t.Errorf("growth light touched (%v) though it was already off", call)
		}
	}
}

func TestRun_MissingSettings(t *testing.T) {
	kit := newFakeKit()
	rail := testRail(t, kit, light.NIR)
	seq := New(rail, kit, 4, 4, testLogger())

	shots := []Shot{{Channel: light.NIR}}
	_, err := seq.Run(context.Background(), shots, capture.SettingsMap{})
	if !errors.Is(err, ErrMissingSettings) {
		t.Fatalf("Run error = %v, want ErrMissingSettings", err)
	}
	if len(kit.switches) != 0 {
		t.Errorf("lights touched despite missing settings: %v", kit.switches)
	}
}

func TestRun_CaptureFailureTurnsLightOff(t *testing.T) {
	kit := newFakeKit()
	kit.capErr = errors.New("sensor timeout")
	rail := testRail(t, kit, light.Red)
	seq := New(rail, kit, 4, 4, testLogger())

	shots := []Shot{{Channel: light.Red}}
	_, err := seq.Run(context.Background(), shots, defaultSettings(light.Red))
	if !errors.Is(err, kit.capErr) {
		t.Fatalf("Run error = %v, want %v", err, kit.capErr)
	}
	last := kit.switches[len(kit.switches)-1]
	if last != (switchCall{light.Red, false}) {
		t.Errorf("last switch call = %v, want the light turned back off", last)
	}
}
