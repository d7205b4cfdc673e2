package params

// Global is a decoded, independent copy of the top-level parameter record.
// Holding one across a suspension point is safe: no component retains a
// reference into the live map, per spec.md §9.
type Global struct {
	ModeID               string
	NumServos            int
	RateFPS              int
	Alpha                float64
	StrokeOffset         int
	LimitAbsolute        int
	LimitRelational      int
	LimitSpeed           int
	Kp, Ki, Kd           float64
	KValNormal, KValHold int
	Hosts                []string
	Port                 int
	GhostHost            string
	GhostPort            int
	SendClients          bool
	SendGhost            bool
	ValsPerHost          int
	StrokeLengthLimit    int
	MotorPositionMapping []int
	RecvPorts            []int
	HomingTimeout        float64
	GetposTimeout        float64
	BootWait             float64
	NeutralSpeed         float64
	ExpectedBootPorts    int
	LUTY                 [7]float64
}

// Mode is a decoded, independent copy of one mode record.
type Mode struct {
	Name                      string
	Func                      string
	AmpMode                   string
	BaseFreq                  float64
	PhaseRate                 float64
	Direction                 float64
	StrokeLength              int
	StrokeLengthLimitSpecific int
	HasLimitSpecific          bool
	ParamA, ParamB            float64
	AmpFreq, AmpParamA        float64
	AmpParamB                 float64
	LocationDegree            float64
	LocationHeight            float64
	EasingDuration            float64
	UAverage, UWidth          float64
	UFrequentness             float64
}

// Snapshot is the consistent, point-in-time view a single frame reads.
type Snapshot struct {
	Global     Global
	Mode       Mode
	ModeFellBack bool // true when ModeID resolved to the sin/solid fallback
}

// Snapshot takes a cheap, consistent copy of the top-level map and the
// currently active mode map, per spec.md §5.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := decodeGlobal(s.global)
	modeRecord, ok := s.modes[g.ModeID]
	fellBack := false
	if !ok {
		modeRecord = nil
		fellBack = true
	}
	m := decodeMode(modeRecord)
	return Snapshot{Global: g, Mode: m, ModeFellBack: fellBack}
}

// ModeSnapshot returns the decoded record for an arbitrary mode id; ok is
// false when no such mode exists.
func (s *Store) ModeSnapshot(modeID string) (Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.modes[modeID]
	return decodeMode(rec), ok
}

// RawGlobal returns the raw value currently stored for key, for type
// coercion by callers. ok is false if the key is unset.
func (s *Store) RawGlobal(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.global[key]
	return v, ok
}

// RawMode returns the raw value currently stored for key within modeID.
func (s *Store) RawMode(modeID, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mode, ok := s.modes[modeID]
	if !ok {
		return nil, false
	}
	v, ok := mode[key]
	return v, ok
}

func decodeGlobal(m map[string]any) Global {
	g := Global{
		ModeID:          stringOr(m["MODE"], "1"),
		NumServos:       intOr(m["NUM_SERVOS"], 31),
		RateFPS:         intOr(m["RATE_fps"], 24),
		Alpha:           floatOr(m["ALPHA"], 0.2),
		StrokeOffset:    intOr(m["STROKE_OFFSET"], 0),
		LimitAbsolute:   intOr(m["LIMIT_ABSOLUTE"], 100000),
		LimitRelational: intOr(m["LIMIT_RELATIONAL"], 100000),
		LimitSpeed:      intOr(m["LIMIT_SPEED"], 100000),
		Kp:              floatOr(m["Kp"], 0),
		Ki:              floatOr(m["Ki"], 0),
		Kd:              floatOr(m["Kd"], 0),
		KValNormal:      intOr(m["K_VAL_NORMAL"], 25),
		KValHold:        intOr(m["K_VAL_HOLD"], 10),
		Hosts:           stringSliceOr(m["HOSTS"], []string{"127.0.0.1"}),
		Port:            intOr(m["PORT"], 50000),
		GhostHost:       stringOr(m["GHOST_HOST"], ""),
		GhostPort:       intOr(m["GHOST_PORT"], 0),
		SendClients:     boolOr(m["SEND_CLIENTS"], true),
		SendGhost:       boolOr(m["SEND_CLIENT_GH"], false),
		ValsPerHost:       intOr(m["VALS_PER_HOST"], 8),
		StrokeLengthLimit: intOr(m["STROKE_LENGTH_LIMIT"], 50000),
		RecvPorts:       intSliceOr(m["RECV_PORTS"], nil),
		HomingTimeout:   floatOr(m["HOMING_TIMEOUT"], 21.0),
		GetposTimeout:   floatOr(m["GETPOS_TIMEOUT"], 2.0),
		BootWait:        floatOr(m["BOOT_WAIT"], 10.0),
		NeutralSpeed:      floatOr(m["NEUTRAL_SPEED"], 20000.0),
		ExpectedBootPorts: intOr(m["EXPECTED_BOOT_PORTS"], 1),
	}
	g.MotorPositionMapping = intSliceOr(m["MOTOR_POSITION_MAPPING"], identityMapping(g.NumServos))
	lut := floatSliceOr(m["LUT_Y"], []float64{-1, -2.0 / 3, -1.0 / 3, 0, 1.0 / 3, 2.0 / 3, 1})
	for i := 0; i < 7 && i < len(lut); i++ {
		g.LUTY[i] = lut[i]
	}
	return g
}

func identityMapping(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func decodeMode(m map[string]any) Mode {
	if m == nil {
		return Mode{Func: "sin", AmpMode: "solid", BaseFreq: 1, Direction: 1, StrokeLength: 0}
	}
	mode := Mode{
		Name:           stringOr(m["NAME"], ""),
		Func:           stringOr(m["FUNC"], "sin"),
		AmpMode:        stringOr(m["AMP_MODE"], "solid"),
		BaseFreq:       floatOr(m["BASE_FREQ"], 1.0),
		PhaseRate:      floatOr(m["PHASE_RATE"], 0.0),
		Direction:      floatOr(m["DIRECTION"], 1.0),
		StrokeLength:   intOr(m["STROKE_LENGTH"], 0),
		ParamA:         floatOr(m["PARAM_A"], 0.0),
		ParamB:         floatOr(m["PARAM_B"], 0.0),
		AmpFreq:        floatOr(m["AMP_FREQ"], 0.0),
		AmpParamA:      floatOr(m["AMP_PARAM_A"], 0.0),
		AmpParamB:      floatOr(m["AMP_PARAM_B"], 0.0),
		LocationDegree: floatOr(m["LOCATION_DEGREE"], 0.0),
		LocationHeight: floatOr(m["LOCATION_HEIGHT"], 0.0),
		EasingDuration: floatOr(m["EASING_DURATION"], 0.0),
		UAverage:       floatOr(m["U_AVERAGE"], 1.0),
		UWidth:         floatOr(m["U_WIDTH"], 0.0),
		UFrequentness:  floatOr(m["U_FREQUENTNESS"], 0.0),
	}
	if v, ok := m["STROKE_LENGTH_LIMIT_SPECIFIC"]; ok {
		mode.StrokeLengthLimitSpecific = intOr(v, 0)
		mode.HasLimitSpecific = true
	}
	if mode.Direction >= 0 {
		mode.Direction = 1
	} else {
		mode.Direction = -1
	}
	return mode
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func floatOr(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func stringSliceOr(v any, def []string) []string {
	list, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func intSliceOr(v any, def []int) []int {
	list, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]int, 0, len(list))
	for _, e := range list {
		out = append(out, intOr(e, 0))
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func floatSliceOr(v any, def []float64) []float64 {
	list, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]float64, 0, len(list))
	for _, e := range list {
		out = append(out, floatOr(e, 0))
	}
	if len(out) == 0 {
		return def
	}
	return out
}
