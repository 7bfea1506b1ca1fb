package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/intcode/pkg/intcode"
	"github.com/chazu/intcode/pkg/intcode/snapshot"
	"github.com/chazu/intcode/store"
)

// maxReadCount bounds the cells returned by one Read call.
const maxReadCount = 4096

// MachineService implements the machine service procedures.
type MachineService struct {
	worker   *Worker
	sessions *SessionStore
	cfg      *serverConfig
}

// NewMachineService creates a MachineService.
func NewMachineService(worker *Worker, sessions *SessionStore, cfg *serverConfig) *MachineService {
	return &MachineService{
		worker:   worker,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Run executes a program to completion and reports its outputs and final
// cell 0. Faults and step-limit overruns are part of the result, not RPC
// errors.
//
// Patch addresses are bounded by the memory limit like Write.
//
// Request: program (text), inputs, patches [{address, value}], max_steps.
func (s *MachineService) Run(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	program, err := s.parseProgram(req.Msg)
	if err != nil {
		return nil, err
	}
	inputs, err := getInts(req.Msg, "inputs")
	if err != nil {
		return nil, err
	}
	patches, err := getPatches(req.Msg)
	if err != nil {
		return nil, err
	}
	for _, p := range patches {
		if err := s.checkWrite(p.address); err != nil {
			return nil, err
		}
	}
	limit, err := s.stepLimit(req.Msg)
	if err != nil {
		return nil, err
	}

	m := s.newMachine(program)
	for _, p := range patches {
		m.Write(p.address, p.value)
	}
	image := m.Memory().Words()

	var runErr error
	_, err = s.worker.Do(ctx, func() (any, error) {
		_, runErr = m.RunLimit(intcode.NewInput(inputs...), limit)
		return nil, nil
	})
	if err != nil {
		return nil, machineError(err)
	}

	run := store.NewRun(image, inputs, m, runErr)
	if s.cfg.store != nil {
		if run, err = s.cfg.store.Record(ctx, run); err != nil {
			log.Errorf("recording run: %s", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	fields := map[string]*structpb.Value{
		"status":      structpb.NewStringValue(string(run.Status)),
		"outputs":     wordsValue(m.Outputs()),
		"cell0":       wordString(m.Read(0)),
		"steps":       number(int64(m.Steps())),
		"halt_reason": structpb.NewStringValue(m.HaltReason().String()),
		"fingerprint": structpb.NewStringValue(run.Fingerprint),
	}
	if run.Error != "" {
		fields["error"] = structpb.NewStringValue(run.Error)
	}
	if run.ID != "" {
		fields["run_id"] = structpb.NewStringValue(run.ID)
	}
	return reply(fields), nil
}

// CreateSession starts a machine that lives across calls, either from
// program text or from a snapshot produced by Snapshot.
//
// Request: program or snapshot (base64), name, inputs.
func (s *MachineService) CreateSession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var (
		m   *intcode.Machine
		in  *intcode.Input
		err error
	)
	if encoded := getString(req.Msg, "snapshot"); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, invalidArgument("snapshot: %v", err)
		}
		if m, in, err = snapshot.Unmarshal(data); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		if n := m.Memory().Len(); s.cfg.memoryLimit > 0 && n > s.cfg.memoryLimit {
			return nil, connect.NewError(connect.CodeOutOfRange,
				fmt.Errorf("snapshot has %d words, limit is %d", n, s.cfg.memoryLimit))
		}
		m.SetMemoryLimit(s.cfg.memoryLimit)
	} else {
		program, err := s.parseProgram(req.Msg)
		if err != nil {
			return nil, err
		}
		m = s.newMachine(program)
		in = intcode.NewInput()
	}

	inputs, err := getInts(req.Msg, "inputs")
	if err != nil {
		return nil, err
	}
	in.Push(inputs...)

	session := s.sessions.Create(getString(req.Msg, "name"), m, in)
	log.Debugf("created session %s (%d words)", session.ID, m.Memory().Len())

	return reply(map[string]*structpb.Value{
		"session_id": structpb.NewStringValue(session.ID),
		"length":     number(int64(m.Memory().Len())),
		"pc":         number(int64(m.PC())),
	}), nil
}

// DestroySession discards a session.
//
// Request: session_id.
func (s *MachineService) DestroySession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id := getString(req.Msg, "session_id")
	if !s.sessions.Destroy(id) {
		return nil, sessionNotFound(id)
	}
	return reply(map[string]*structpb.Value{}), nil
}

// Step queues inputs on a session and executes up to count instructions
// (default 1), stopping early at a halt or, with until_output, after the
// first new output. Buffered outputs are returned and removed from the
// machine. A fault leaves the machine as it was before the faulting
// instruction, keeps its outputs buffered and is returned as
// FailedPrecondition.
//
// Request: session_id, inputs, count, until_output.
func (s *MachineService) Step(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	inputs, err := getInts(req.Msg, "inputs")
	if err != nil {
		return nil, err
	}
	count, err := getInt(req.Msg, "count", 1)
	if err != nil {
		return nil, err
	}
	if count < 1 || uint64(count) > s.cfg.stepLimit {
		return nil, invalidArgument("count must be between 1 and %d", s.cfg.stepLimit)
	}
	untilOutput := getBool(req.Msg, "until_output")

	var fields map[string]*structpb.Value
	err = session.With(func(m *intcode.Machine, in *intcode.Input) error {
		in.Push(inputs...)
		_, err := s.worker.Do(ctx, func() (any, error) {
			return nil, stepN(m, in, count, untilOutput)
		})
		if err != nil {
			return err
		}
		out := m.TakeOutputs()
		next := ""
		if !m.Halted() {
			next, _ = intcode.DisassembleAt(m.Memory().Words(), m.PC())
		}
		fields = map[string]*structpb.Value{
			"outputs":     wordsValue(out),
			"pc":          number(int64(m.PC())),
			"steps":       number(int64(m.Steps())),
			"halted":      structpb.NewBoolValue(m.Halted()),
			"halt_reason": structpb.NewStringValue(m.HaltReason().String()),
			"next":        structpb.NewStringValue(next),
			"pending":     number(int64(in.Len())),
		}
		return nil
	})
	if err != nil {
		return nil, machineError(err)
	}
	return reply(fields), nil
}

// stepN executes up to n instructions. Reaching a halt is not an error.
func stepN(m *intcode.Machine, in *intcode.Input, n int64, untilOutput bool) error {
	for range n {
		before := len(m.Outputs())
		if err := m.Step(in); err != nil {
			if intcode.IsEnd(err) {
				return nil
			}
			return err
		}
		if untilOutput && len(m.Outputs()) > before {
			return nil
		}
	}
	return nil
}

// Read returns count cells (default 1) starting at address.
//
// Request: session_id, address, count.
func (s *MachineService) Read(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	addr, err := s.address(req.Msg)
	if err != nil {
		return nil, err
	}
	count, err := getInt(req.Msg, "count", 1)
	if err != nil {
		return nil, err
	}
	if count < 1 || count > maxReadCount {
		return nil, invalidArgument("count must be between 1 and %d", maxReadCount)
	}

	values := make([]int64, count)
	err = session.With(func(m *intcode.Machine, _ *intcode.Input) error {
		for i := range values {
			values[i] = m.Read(addr + i)
		}
		return nil
	})
	if err != nil {
		return nil, machineError(err)
	}
	return reply(map[string]*structpb.Value{
		"values": wordsValue(values),
	}), nil
}

// Write stores value at address, growing memory as needed.
//
// Request: session_id, address, value.
func (s *MachineService) Write(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	addr, err := s.address(req.Msg)
	if err != nil {
		return nil, err
	}
	if err := s.checkWrite(addr); err != nil {
		return nil, err
	}
	if field(req.Msg, "value") == nil {
		return nil, invalidArgument("value is required")
	}
	value, err := getInt(req.Msg, "value", 0)
	if err != nil {
		return nil, err
	}

	err = session.With(func(m *intcode.Machine, _ *intcode.Input) error {
		m.Write(addr, value)
		return nil
	})
	if err != nil {
		return nil, machineError(err)
	}
	return reply(map[string]*structpb.Value{}), nil
}

// Snapshot exports a session as a base64 CBOR image that CreateSession
// accepts.
//
// Request: session_id.
func (s *MachineService) Snapshot(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}

	var (
		data        []byte
		fingerprint string
	)
	err = session.With(func(m *intcode.Machine, in *intcode.Input) error {
		var err error
		data, err = snapshot.Marshal(m, in)
		fingerprint = intcode.Fingerprint(m.Memory().Words())
		return err
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return reply(map[string]*structpb.Value{
		"snapshot":    structpb.NewStringValue(base64.StdEncoding.EncodeToString(data)),
		"fingerprint": structpb.NewStringValue(fingerprint),
	}), nil
}

// Disassemble lists a program, or a session's current memory with its pc
// marked.
//
// Request: program or session_id.
func (s *MachineService) Disassemble(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var text string
	if getString(req.Msg, "session_id") != "" {
		session, err := s.session(req.Msg)
		if err != nil {
			return nil, err
		}
		err = session.With(func(m *intcode.Machine, _ *intcode.Input) error {
			text = m.Disassemble()
			return nil
		})
		if err != nil {
			return nil, machineError(err)
		}
	} else {
		program, err := s.parseProgram(req.Msg)
		if err != nil {
			return nil, err
		}
		text = intcode.Disassemble(program)
	}
	return reply(map[string]*structpb.Value{
		"text": structpb.NewStringValue(text),
	}), nil
}

// --- helpers ---

func (s *MachineService) parseProgram(msg *structpb.Struct) ([]int64, error) {
	text := getString(msg, "program")
	if text == "" {
		return nil, invalidArgument("program is required")
	}
	words, err := intcode.Parse(text)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if s.cfg.memoryLimit > 0 && len(words) > s.cfg.memoryLimit {
		return nil, connect.NewError(connect.CodeOutOfRange,
			fmt.Errorf("program has %d words, limit is %d", len(words), s.cfg.memoryLimit))
	}
	return words, nil
}

func (s *MachineService) newMachine(program []int64) *intcode.Machine {
	m := intcode.New(program)
	m.SetMemoryLimit(s.cfg.memoryLimit)
	return m
}

// writeLimit bounds caller writes, which the machine's own limit does not
// cover.
func (s *MachineService) writeLimit() int {
	if s.cfg.memoryLimit > 0 {
		return s.cfg.memoryLimit
	}
	return math.MaxInt32
}

// checkWrite rejects a caller write at addr past the write limit.
func (s *MachineService) checkWrite(addr int) error {
	if limit := s.writeLimit(); addr >= limit {
		return connect.NewError(connect.CodeOutOfRange,
			fmt.Errorf("address %d beyond memory limit %d", addr, limit))
	}
	return nil
}

// stepLimit returns the request's max_steps capped by the server limit.
func (s *MachineService) stepLimit(msg *structpb.Struct) (uint64, error) {
	n, err := getInt(msg, "max_steps", 0)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, invalidArgument("max_steps must not be negative")
	}
	if n == 0 || uint64(n) > s.cfg.stepLimit {
		return s.cfg.stepLimit, nil
	}
	return uint64(n), nil
}

func (s *MachineService) session(msg *structpb.Struct) (*Session, error) {
	id := getString(msg, "session_id")
	if id == "" {
		return nil, invalidArgument("session_id is required")
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, sessionNotFound(id)
	}
	return session, nil
}

func (s *MachineService) address(msg *structpb.Struct) (int, error) {
	if field(msg, "address") == nil {
		return 0, invalidArgument("address is required")
	}
	addr, err := getInt(msg, "address", 0)
	if err != nil {
		return 0, err
	}
	if addr < 0 || addr > maxSafeInteger {
		return 0, invalidArgument("address %d out of range", addr)
	}
	return int(addr), nil
}

func sessionNotFound(id string) error {
	return connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
}

// machineError maps an execution error to a Connect error.
func machineError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, intcode.ErrMemoryLimit):
		return connect.NewError(connect.CodeResourceExhausted, err)
	default:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}
}
