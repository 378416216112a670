package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agent"
)

// SmartHomeController is an in-memory mock of a smart home installation.
type SmartHomeController struct {
	mu         sync.Mutex
	lights     map[string]*lightState
	thermostat thermostatState
	security   securityState
	devices    map[string]bool
	scenes     map[string][]string
	actionLog  []logEntry
}

type lightState struct {
	On         bool
	Brightness int
	ColorTemp  int
}

type thermostatState struct {
	CurrentTemp int
	TargetTemp  int
	Mode        string
	Humidity    int
}

type securityState struct {
	DoorLocked bool
	GarageOpen bool
}

type logEntry struct {
	Timestamp time.Time
	Action    string
	Device    string
	Details   string
}

func NewSmartHomeController() *SmartHomeController {
	return &SmartHomeController{
		lights: map[string]*lightState{
			"living_room": {ColorTemp: 4000},
			"bedroom":     {ColorTemp: 3000},
			"kitchen":     {ColorTemp: 5000},
			"bathroom":    {ColorTemp: 4000},
		},
		thermostat: thermostatState{CurrentTemp: 72, TargetTemp: 72, Mode: "auto", Humidity: 45},
		security:   securityState{DoorLocked: true},
		devices: map[string]bool{
			"tv": false, "coffee_maker": false, "washing_machine": false, "refrigerator": true,
		},
		scenes: make(map[string][]string),
	}
}

func (c *SmartHomeController) log(action, device, details string) {
	c.actionLog = append(c.actionLog, logEntry{
		Timestamp: time.Now(),
		Action:    action,
		Device:    device,
		Details:   details,
	})
}

func (c *SmartHomeController) roomNames() []string {
	names := make([]string, 0, len(c.lights))
	for name := range c.lights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToggleLight flips a room's light, optionally forcing state and adjusting
// brightness (0-100) and color temperature (2700-6500K).
func (c *SmartHomeController) ToggleLight(room string, state *bool, brightness, colorTemp *int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	light, ok := c.lights[room]
	if !ok {
		return "", errors.Errorf("room %q not found, available: %s", room, strings.Join(c.roomNames(), ", "))
	}

	if state != nil {
		light.On = *state
	} else {
		light.On = !light.On
	}
	if brightness != nil && *brightness >= 0 && *brightness <= 100 {
		if light.On {
			light.Brightness = *brightness
		} else {
			light.Brightness = 0
		}
	}
	if colorTemp != nil && *colorTemp >= 2700 && *colorTemp <= 6500 {
		light.ColorTemp = *colorTemp
	}

	c.log("toggle", room, fmt.Sprintf("on=%v, brightness=%d", light.On, light.Brightness))

	if !light.On {
		return fmt.Sprintf("Light in %s turned off", room), nil
	}
	return fmt.Sprintf("Light in %s turned on (brightness: %d%%, color temp: %dK)",
		room, light.Brightness, light.ColorTemp), nil
}

// SetThermostat updates target temperature (60-85F) and optionally the mode.
func (c *SmartHomeController) SetThermostat(targetTemp int, mode string) (string, error) {
	if targetTemp < 60 || targetTemp > 85 {
		return "", errors.New("temperature must be between 60-85F")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.thermostat.TargetTemp = targetTemp
	switch mode {
	case "heat", "cool", "auto":
		c.thermostat.Mode = mode
	}
	c.log("thermostat", "hvac", fmt.Sprintf("target=%dF, mode=%s", targetTemp, c.thermostat.Mode))
	return fmt.Sprintf("Thermostat set to %dF in %s mode", targetTemp, c.thermostat.Mode), nil
}

// ThermostatStatus returns the current thermostat readings.
func (c *SmartHomeController) ThermostatStatus() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"current_temp": c.thermostat.CurrentTemp,
		"target_temp":  c.thermostat.TargetTemp,
		"mode":         c.thermostat.Mode,
		"humidity":     c.thermostat.Humidity,
	}
}

// ControlDevice turns a device on or off; nil toggles.
func (c *SmartHomeController) ControlDevice(device string, on *bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.devices[device]
	if !ok {
		names := make([]string, 0, len(c.devices))
		for name := range c.devices {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", errors.Errorf("device %q not found, available: %s", device, strings.Join(names, ", "))
	}

	next := !current
	if on != nil {
		next = *on
	}
	c.devices[device] = next

	label := strings.ReplaceAll(device, "_", " ")
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	stateWord := "off"
	if next {
		stateWord = "on"
	}
	c.log("device_control", device, "state="+stateWord)
	return fmt.Sprintf("%s turned %s", label, stateWord), nil
}

// LockDoor locks or unlocks the front door.
func (c *SmartHomeController) LockDoor(lock bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.security.DoorLocked = lock
	word := "unlocked"
	if lock {
		word = "locked"
	}
	c.log("security", "door", word)
	return "Door is now " + word
}

// ControlGarage opens or closes the garage door.
func (c *SmartHomeController) ControlGarage(open bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.security.GarageOpen = open
	word := "closed"
	if open {
		word = "open"
	}
	c.log("security", "garage", word)
	return "Garage is now " + word
}

// HomeStatus returns a snapshot of every device.
func (c *SmartHomeController) HomeStatus() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	lights := make(map[string]bool, len(c.lights))
	for room, light := range c.lights {
		lights[room] = light.On
	}
	devices := make(map[string]bool, len(c.devices))
	for name, on := range c.devices {
		devices[name] = on
	}
	return map[string]any{
		"lights": lights,
		"thermostat": map[string]any{
			"current_temp": c.thermostat.CurrentTemp,
			"target_temp":  c.thermostat.TargetTemp,
			"mode":         c.thermostat.Mode,
		},
		"security": map[string]any{
			"door_locked": c.security.DoorLocked,
			"garage_open": c.security.GarageOpen,
		},
		"devices": devices,
	}
}

// CreateScene stores a named list of actions.
func (c *SmartHomeController) CreateScene(name string, actions []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes[name] = actions
	return fmt.Sprintf("Scene %q created with %d actions", name, len(actions))
}

// ActivateScene reports the actions of a stored scene.
func (c *SmartHomeController) ActivateScene(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	actions, ok := c.scenes[name]
	if !ok {
		return "", errors.Errorf("scene %q not found", name)
	}
	return fmt.Sprintf("Scene %q activated with actions: %s", name, strings.Join(actions, ", ")), nil
}

// DeviceLog returns the most recent actions.
func (c *SmartHomeController) DeviceLog(limit int) []map[string]string {
	if limit <= 0 {
		limit = 10
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.actionLog
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]string{
			"timestamp": e.Timestamp.Format("2006-01-02 15:04:05"),
			"action":    e.Action,
			"device":    e.Device,
			"details":   e.Details,
		})
	}
	return out
}

// HomeTools exposes the controller as agent tools.
func HomeTools(c *SmartHomeController) []agent.Tool {
	return []agent.Tool{
		{
			Name:        "toggle_light",
			Description: "Toggle light on/off in a room, optionally set brightness (0-100) and color temperature (2700-6500K)",
			Params: map[string]string{
				"room": "str", "state": "bool (optional)",
				"brightness": "int (0-100, optional)", "color_temp": "int (2700-6500, optional)",
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				room, _ := stringArg(args, "room")
				var state *bool
				if v, ok := boolArg(args, "state"); ok {
					state = &v
				}
				var brightness, colorTemp *int
				if v, ok := intArg(args, "brightness"); ok {
					brightness = &v
				}
				if v, ok := intArg(args, "color_temp"); ok {
					colorTemp = &v
				}
				return c.ToggleLight(room, state, brightness, colorTemp)
			},
		},
		{
			Name:        "set_thermostat",
			Description: "Set target temperature and HVAC mode",
			Params:      map[string]string{"target_temp": "int (60-85)", "mode": "str (heat/cool/auto, optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				temp, ok := intArg(args, "target_temp")
				if !ok {
					return nil, errors.New("target_temp is required")
				}
				mode, _ := stringArg(args, "mode")
				return c.SetThermostat(temp, mode)
			},
		},
		{
			Name:        "get_thermostat_status",
			Description: "Get current thermostat and temperature status",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.ThermostatStatus(), nil
			},
		},
		{
			Name:        "control_device",
			Description: "Turn smart devices on/off (tv, coffee_maker, washing_machine, refrigerator)",
			Params:      map[string]string{"device": "str", "on": "bool (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				device, _ := stringArg(args, "device")
				var on *bool
				if v, ok := boolArg(args, "on"); ok {
					on = &v
				}
				return c.ControlDevice(device, on)
			},
		},
		{
			Name:        "lock_door",
			Description: "Lock or unlock front door",
			Params:      map[string]string{"lock": "bool"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				lock, ok := boolArg(args, "lock")
				if !ok {
					lock = true
				}
				return c.LockDoor(lock), nil
			},
		},
		{
			Name:        "control_garage",
			Description: "Open or close garage door",
			Params:      map[string]string{"open_garage": "bool"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				open, ok := boolArg(args, "open_garage")
				if !ok {
					return nil, errors.New("open_garage is required")
				}
				return c.ControlGarage(open), nil
			},
		},
		{
			Name:        "get_home_status",
			Description: "Get complete status of all home devices",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.HomeStatus(), nil
			},
		},
		{
			Name:        "create_scene",
			Description: "Create a new automation scene with predefined actions",
			Params:      map[string]string{"scene_name": "str", "actions": "list"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				name, _ := stringArg(args, "scene_name")
				if name == "" {
					return nil, errors.New("scene_name is required")
				}
				var actions []string
				switch v := args["actions"].(type) {
				case []any:
					for _, item := range v {
						actions = append(actions, fmt.Sprint(item))
					}
				case string:
					for _, part := range strings.Split(v, ",") {
						if p := strings.TrimSpace(part); p != "" {
							actions = append(actions, p)
						}
					}
				}
				return c.CreateScene(name, actions), nil
			},
		},
		{
			Name:        "activate_scene",
			Description: "Activate a predefined scene",
			Params:      map[string]string{"scene_name": "str"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				name, _ := stringArg(args, "scene_name")
				return c.ActivateScene(name)
			},
		},
		{
			Name:        "get_device_log",
			Description: "Get recent device activity log",
			Params:      map[string]string{"limit": "int (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				limit, _ := intArg(args, "limit")
				return c.DeviceLog(limit), nil
			},
		},
	}
}

// NewHomeAgent builds the smart home agent with its tool set.
func NewHomeAgent(model agent.ChatModel, memory agent.MemorySource, logger zerolog.Logger) (*agent.Agent, error) {
	return agent.New(agent.Options{
		ID:           "home",
		Name:         "JARVIS",
		Role:         "Home Automation Manager",
		Instructions: "You are a smart home assistant. Help users control their home efficiently. When controlling multiple devices, do it step by step.",
		Model:        model,
		Tools:        HomeTools(NewSmartHomeController()),
		Memory:       memory,
		Logger:       logger,
	})
}
