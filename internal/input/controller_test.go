package input

import (
	"errors"
	"sync"
	"testing"
)

func TestNew_ShouldCreateControllerWithDefaultState(t *testing.T) {
	controller := New()

	if controller == nil {
		t.Fatal("Expected controller, got nil")
	}
	if controller.State() != 0 {
		t.Errorf("Expected initial buttons state 0, got %d", controller.State())
	}
	if controller.Latched() != 0 {
		t.Errorf("Expected initial latched state 0, got %d", controller.Latched())
	}
}

func TestSetButton_ShouldUpdateButtonState(t *testing.T) {
	controller := New()

	buttons := []Button{
		ButtonA, ButtonB, ButtonSelect, ButtonStart,
		ButtonUp, ButtonDown, ButtonLeft, ButtonRight,
	}

	for _, button := range buttons {
		controller.SetButton(button, true)

		if !controller.IsPressed(button) {
			t.Errorf("Button %s should be pressed after SetButton(true)", button)
		}
		if controller.State() != uint8(button) {
			t.Errorf("Expected buttons state %d, got %d", uint8(button), controller.State())
		}

		controller.SetButton(button, false)

		if controller.IsPressed(button) {
			t.Errorf("Button %s should not be pressed after SetButton(false)", button)
		}
	}
}

func TestSetButtons_ShouldMapArrayOrder(t *testing.T) {
	controller := New()
	controller.SetButtons([8]bool{true, false, false, true, false, false, false, true})

	expected := uint8(ButtonA | ButtonStart | ButtonRight)
	if controller.State() != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, controller.State())
	}
}

func TestPoll_ShouldLatchLiveState(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonUp, true)

	got, err := controller.Poll(1)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got != uint8(ButtonUp) || controller.Latched() != uint8(ButtonUp) {
		t.Errorf("Expected latched Up, got 0x%02X / 0x%02X", got, controller.Latched())
	}

	controller.SetButton(ButtonUp, false)
	if controller.Latched() != uint8(ButtonUp) {
		t.Error("Latched state should only change on Poll")
	}
}

func TestSetButton_ConcurrentUpdates(t *testing.T) {
	controller := New()
	buttons := []Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}

	var wg sync.WaitGroup
	for _, b := range buttons {
		wg.Add(1)
		go func(b Button) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				controller.SetButton(b, i%2 == 0)
			}
			controller.SetButton(b, true)
		}(b)
	}
	wg.Wait()

	if controller.State() != 0xFF {
		t.Errorf("Expected all buttons pressed, got 0x%02X", controller.State())
	}
}

func TestReset_ShouldReleaseButtons(t *testing.T) {
	controller := New()
	controller.SetState(0xFF)
	controller.Poll(0)
	controller.Reset()

	if controller.State() != 0 || controller.Latched() != 0 {
		t.Errorf("Expected cleared state, got 0x%02X / 0x%02X", controller.State(), controller.Latched())
	}
	if controller.Polls() != 0 {
		t.Errorf("Expected poll count cleared, got %d", controller.Polls())
	}
}

func TestPoll_ShouldCountPolls(t *testing.T) {
	controller := New()
	for step := uint64(0); step < 5; step++ {
		controller.Poll(step)
	}

	if controller.Polls() != 5 {
		t.Errorf("Expected 5 polls, got %d", controller.Polls())
	}
}

func TestDirectionCode(t *testing.T) {
	tests := []struct {
		name     string
		state    uint8
		expected uint8
		ok       bool
	}{
		{"none", 0, 0, false},
		{"buttons only", uint8(ButtonA | ButtonStart), 0, false},
		{"up", uint8(ButtonUp), 'w', true},
		{"down", uint8(ButtonDown), 's', true},
		{"left", uint8(ButtonLeft), 'a', true},
		{"right", uint8(ButtonRight), 'd', true},
		{"up wins over right", uint8(ButtonUp | ButtonRight), 'w', true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := DirectionCode(tt.state)
			if code != tt.expected || ok != tt.ok {
				t.Errorf("DirectionCode(0x%02X) = 0x%02X, %v; want 0x%02X, %v", tt.state, code, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key      byte
		expected Button
		ok       bool
	}{
		{'w', ButtonUp, true},
		{'A', ButtonLeft, true},
		{'z', ButtonA, true},
		{'x', ButtonB, true},
		{'\r', ButtonStart, true},
		{' ', ButtonSelect, true},
		{'q', 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseKey(tt.key)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("ParseKey(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.expected, tt.ok)
		}
	}

	if b, ok := ParseArrow('C'); !ok || b != ButtonRight {
		t.Errorf("ParseArrow('C') = %v, %v", b, ok)
	}
}

func TestScriptSource_Poll(t *testing.T) {
	src, err := NewScriptSourceString("test", `
function poll(step)
	if step % 2 == 0 then
		return UP + A
	end
	return nil
end
`)
	if err != nil {
		t.Fatalf("Failed to load script: %v", err)
	}
	defer src.Close()

	tests := []struct {
		step     uint64
		expected uint8
	}{
		{0, uint8(ButtonUp | ButtonA)},
		{1, 0},
		{10, uint8(ButtonUp | ButtonA)},
	}

	for _, tt := range tests {
		got, err := src.Poll(tt.step)
		if err != nil {
			t.Fatalf("Poll(%d) failed: %v", tt.step, err)
		}
		if got != tt.expected {
			t.Errorf("Poll(%d) = 0x%02X, want 0x%02X", tt.step, got, tt.expected)
		}
	}
}

func TestScriptSource_Errors(t *testing.T) {
	if _, err := NewScriptSourceString("nopoll", "x = 1"); !errors.Is(err, ErrNoPollFunction) {
		t.Errorf("Expected ErrNoPollFunction, got %v", err)
	}

	if _, err := NewScriptSourceString("syntax", "function poll("); err == nil {
		t.Error("Expected syntax error")
	}

	src, err := NewScriptSourceString("bad return", `function poll(step) return "left" end`)
	if err != nil {
		t.Fatalf("Failed to load script: %v", err)
	}
	defer src.Close()
	if _, err := src.Poll(0); err == nil {
		t.Error("Expected error for non-numeric return")
	}

	src2, err := NewScriptSourceString("runtime", `function poll(step) error("boom") end`)
	if err != nil {
		t.Fatalf("Failed to load script: %v", err)
	}
	defer src2.Close()
	if _, err := src2.Poll(0); err == nil {
		t.Error("Expected runtime error to propagate")
	}
}

func TestSources_ImplementInterface(t *testing.T) {
	var _ Source = New()
	var _ Source = (*ScriptSource)(nil)
}
