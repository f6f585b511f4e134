package esera

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Status is the canonicalised device/controller status reported in the wire
// protocol as S_0 .. S_10.
type Status int

const (
	StatusOnline Status = iota
	StatusErr1
	StatusErr2
	StatusErr3
	StatusOffline
	StatusUnconfigured
)

// String renders the lowercase name used on the retained MQTT status topic.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusErr1:
		return "error_1"
	case StatusErr2:
		return "error_2"
	case StatusErr3:
		return "error_3"
	case StatusOffline:
		return "offline"
	case StatusUnconfigured:
		return "unconfigured"
	default:
		return "unconfigured"
	}
}

func parseStatus(s string) (Status, error) {
	switch s {
	case "S_0":
		return StatusOnline, nil
	case "S_1":
		return StatusErr1, nil
	case "S_2":
		return StatusErr2, nil
	case "S_3":
		return StatusErr3, nil
	case "S_5":
		return StatusOffline, nil
	case "S_10":
		return StatusUnconfigured, nil
	default:
		return StatusUnconfigured, fmt.Errorf("%w: unknown status code %q", ErrParse, s)
	}
}

// parseStatusCode canonicalises the bare numeric status code carried by an
// "OWD_<n>|<status-code>" line, using the same S_0..S_10 numbering as
// parseStatus.
func parseStatusCode(payload string) (Status, error) {
	n, err := strconv.ParseUint(payload, 10, 8)
	if err != nil {
		return StatusUnconfigured, fmt.Errorf("%w: invalid status code %q", ErrParse, payload)
	}
	switch n {
	case 0:
		return StatusOnline, nil
	case 1:
		return StatusErr1, nil
	case 2:
		return StatusErr2, nil
	case 3:
		return StatusErr3, nil
	case 5:
		return StatusOffline, nil
	case 10:
		return StatusUnconfigured, nil
	default:
		return StatusUnconfigured, fmt.Errorf("%w: unknown status code %d", ErrParse, n)
	}
}

// DIOMode is the controller's digital I/O switching semantics.
type DIOMode int

const (
	DIOIndependentLevel DIOMode = iota
	DIOIndependentEdge
	DIOLinkedLevel
	DIOLinkedEdge
)

// CSI is the controller system info captured during the handshake.
type CSI struct {
	Contno uint8
	Date   string
	Time   string
	Artno  string
	Serno  string
	FW     string
	HW     string
}

// List3Item is one entry in a device enumeration (LST3) response.
type List3Item struct {
	Contno uint8
	BusID  string
	Serno  string
	Status Status
	Artno  string
	Name   string
}

// Devstatus is a generic per-address value update: a per-device sensor or
// output reading (e.g. OWD5_3|2), or a handshake ack (RST/RDY/SAVE) that
// has no dedicated wire key of its own.
type Devstatus struct {
	Contno uint8
	Addr   string
	Value  int32
}

// OWDStatus is the per-device liveness update "OWD_<n>|<status-code>",
// distinct from a Devstatus sub-address reading: Device is the 1-Wire
// device number (the slot index, 1..30), not a sensor/output channel.
type OWDStatus struct {
	Contno uint8
	Device int
	Status Status
}

// Response is the sum type every Parse call produces. Exactly one field
// group is meaningful, selected by Kind.
type Response struct {
	Kind      ResponseKind
	Contno    uint8
	Flag      bool
	Timestamp string
	ErrCode   uint16
	Datatime  uint8
	Date      string
	Time      string
	DIO       DIOMode
	CSI       CSI
	List3     []List3Item
	Devstatus Devstatus
	OWDStatus OWDStatus
}

// ResponseKind discriminates the Response union.
type ResponseKind int

const (
	RespKeepalive ResponseKind = iota
	RespInfo
	RespEvent
	RespErr
	RespDataprint
	RespDatatime
	RespDate
	RespTime
	RespDIO
	RespCSI
	RespList3
	RespDevstatus
	RespOWDStatus
)

// maxList3Items bounds a single enumeration response (BusMax-1 OWD slots).
const maxList3Items = 30

// Parse attempts to decode one message from the head of buf.
//
// Returns the number of bytes consumed, the decoded message, and an error.
// Three outcomes are possible:
//   - consumed > 0, err == nil: a message was decoded; the caller advances
//     its buffer by consumed bytes.
//   - consumed == 0, err == nil: not enough data yet (need-more-input).
//   - consumed == 0, err != nil: the line at the head of buf is malformed;
//     the caller must discard through the next newline and retry — Parse
//     itself never skips bytes, per the host-resync error policy.
func Parse(buf []byte) (consumed int, resp Response, err error) {
	line, lineLen, ok := firstLine(buf)
	if !ok {
		return 0, Response{}, nil
	}

	contno, key, sub, payload, ok := splitHeader(line)
	if !ok {
		return 0, Response{}, fmt.Errorf("%w: %q", ErrParse, line)
	}

	switch {
	case sub == nil && key == "KAL":
		flag, ferr := parseFlag(payload)
		if ferr != nil {
			return 0, Response{}, ferr
		}
		return lineLen, Response{Kind: RespKeepalive, Contno: contno, Flag: flag}, nil

	case sub == nil && key == "INF":
		return lineLen, Response{Kind: RespInfo, Contno: contno, Timestamp: payload}, nil

	case sub == nil && key == "EVT":
		return lineLen, Response{Kind: RespEvent, Contno: contno, Timestamp: payload}, nil

	case sub == nil && key == "ERR":
		code, cerr := strconv.ParseUint(payload, 10, 16)
		if cerr != nil {
			return 0, Response{}, fmt.Errorf("%w: invalid ERR code %q: %w", ErrParse, payload, cerr)
		}
		return lineLen, Response{Kind: RespErr, Contno: contno, ErrCode: uint16(code)}, nil

	case sub == nil && key == "DATAPRINT":
		flag, ferr := parseFlag(payload)
		if ferr != nil {
			return 0, Response{}, ferr
		}
		return lineLen, Response{Kind: RespDataprint, Contno: contno, Flag: flag}, nil

	case sub == nil && key == "DATATIME":
		v, verr := strconv.ParseUint(payload, 10, 8)
		if verr != nil {
			return 0, Response{}, fmt.Errorf("%w: invalid DATATIME %q: %w", ErrParse, payload, verr)
		}
		return lineLen, Response{Kind: RespDatatime, Contno: contno, Datatime: uint8(v)}, nil

	case sub == nil && key == "DATE":
		return lineLen, Response{Kind: RespDate, Contno: contno, Date: payload}, nil

	case sub == nil && key == "TIME":
		return lineLen, Response{Kind: RespTime, Contno: contno, Time: payload}, nil

	case sub == nil && key == "DIO":
		mode, derr := parseDIO(payload)
		if derr != nil {
			return 0, Response{}, derr
		}
		return lineLen, Response{Kind: RespDIO, Contno: contno, DIO: mode}, nil

	case sub == nil && key == "CSI":
		return parseCSI(buf, contno, payload)

	case sub == nil && key == "LST3":
		return parseList3(buf, lineLen, contno)

	case sub != nil && key == "OWD":
		status, serr := parseStatusCode(payload)
		if serr != nil {
			return 0, Response{}, serr
		}
		return lineLen, Response{Kind: RespOWDStatus, Contno: contno, OWDStatus: OWDStatus{
			Contno: contno, Device: int(*sub), Status: status,
		}}, nil

	default:
		addr := key
		if sub != nil {
			addr = fmt.Sprintf("%s_%d", key, *sub)
		}
		v, verr := strconv.ParseInt(payload, 10, 32)
		if verr != nil {
			return 0, Response{}, fmt.Errorf("%w: invalid value %q for %s: %w", ErrParse, payload, addr, verr)
		}
		return lineLen, Response{Kind: RespDevstatus, Contno: contno, Devstatus: Devstatus{
			Contno: contno, Addr: addr, Value: int32(v),
		}}, nil
	}
}

func parseFlag(payload string) (bool, error) {
	switch payload {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%w: expected 0 or 1, got %q", ErrParse, payload)
	}
}

func parseDIO(payload string) (DIOMode, error) {
	switch payload {
	case "0":
		return DIOIndependentLevel, nil
	case "1":
		return DIOIndependentEdge, nil
	case "2":
		return DIOLinkedLevel, nil
	case "3":
		return DIOLinkedEdge, nil
	default:
		return 0, fmt.Errorf("%w: invalid DIO mode %q", ErrParse, payload)
	}
}

// firstLine returns the first CR/LF-terminated line in buf (CR stripped),
// its length on the wire (including terminator), and whether one was found.
func firstLine(buf []byte) (line string, wireLen int, ok bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return "", 0, false
	}
	raw := buf[:idx]
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return string(raw), idx + 1, true
}

// splitHeader parses "<contno>_<key>[_<sub>]|<payload>" for regular
// (non-LST|) lines.
func splitHeader(line string) (contno uint8, key string, sub *uint8, payload string, ok bool) {
	us := strings.IndexByte(line, '_')
	bar := strings.IndexByte(line, '|')
	if us < 0 || bar < 0 || bar < us {
		return 0, "", nil, "", false
	}
	cn, err := strconv.ParseUint(line[:us], 10, 8)
	if err != nil {
		return 0, "", nil, "", false
	}
	rest := line[us+1 : bar]
	payload = line[bar+1:]

	// rest may itself contain a trailing "_<digits>" sub-address, e.g.
	// "OWD5_3". Split on the last underscore only if the suffix is numeric.
	if last := strings.LastIndexByte(rest, '_'); last >= 0 {
		if sv, serr := strconv.ParseUint(rest[last+1:], 10, 8); serr == nil {
			s := uint8(sv)
			return uint8(cn), rest[:last], &s, payload, true
		}
	}
	return uint8(cn), rest, nil, payload, true
}

// parseCSI consumes the 8-line CSI compound once fully buffered. The header
// line's own payload is a request-echo timestamp, not part of the CSI
// record itself, so it is accepted but otherwise discarded.
func parseCSI(buf []byte, contno uint8, _ string) (int, Response, error) {
	lines, total, ok := nLines(buf, 8)
	if !ok {
		return 0, Response{}, nil
	}

	want := []string{"DATE", "TIME", "ARTNO", "SERNO", "FW", "HW", "CONTNO"}
	vals := make(map[string]string, len(want))
	var finalContno uint8 = contno
	for i, w := range want {
		ln := lines[i+1]
		c, key, sub, payload, ok := splitHeader(ln)
		if !ok || sub != nil || key != w || c != contno {
			return 0, Response{}, fmt.Errorf("%w: malformed CSI line %d: %q", ErrParse, i+1, ln)
		}
		vals[w] = payload
		if w == "CONTNO" {
			cn, err := strconv.ParseUint(payload, 10, 8)
			if err != nil {
				return 0, Response{}, fmt.Errorf("%w: invalid CONTNO %q: %w", ErrParse, payload, err)
			}
			finalContno = uint8(cn)
		}
	}

	return total, Response{Kind: RespCSI, Contno: finalContno, CSI: CSI{
		Contno: finalContno,
		Date:   vals["DATE"],
		Time:   vals["TIME"],
		Artno:  vals["ARTNO"],
		Serno:  vals["SERNO"],
		FW:     vals["FW"],
		HW:     vals["HW"],
	}}, nil
}

// parseList3 consumes the LST3 header plus zero-or-more following "LST|"
// lines, stopping at the first line that isn't one (or at maxList3Items).
// Zero LST lines is treated as a well-formed empty list.
func parseList3(buf []byte, headerLen int, contno uint8) (int, Response, error) {
	total := headerLen
	var items []List3Item

	for len(items) < maxList3Items {
		rest := buf[total:]
		line, wireLen, ok := firstLine(rest)
		if !ok {
			return 0, Response{}, nil // need more input
		}
		if !strings.HasPrefix(line, "LST|") {
			break
		}
		item, ierr := parseList3Line(line)
		if ierr != nil {
			return 0, Response{}, ierr
		}
		items = append(items, item)
		total += wireLen
	}

	return total, Response{Kind: RespList3, Contno: contno, List3: items}, nil
}

func parseList3Line(line string) (List3Item, error) {
	body := strings.TrimPrefix(line, "LST|")
	parts := strings.SplitN(body, "|", 5)
	if len(parts) < 4 {
		return List3Item{}, fmt.Errorf("%w: short LST line %q", ErrParse, line)
	}

	us := strings.IndexByte(parts[0], '_')
	if us < 0 {
		return List3Item{}, fmt.Errorf("%w: malformed LST busid %q", ErrParse, parts[0])
	}
	cn, err := strconv.ParseUint(parts[0][:us], 10, 8)
	if err != nil {
		return List3Item{}, fmt.Errorf("%w: invalid LST contno %q: %w", ErrParse, parts[0], err)
	}
	busid := parts[0][us+1:]

	serno := parts[1]
	if serno == "FFFFFFFFFFFFFFFF" {
		serno = ""
	}

	status, serr := parseStatus(parts[2])
	if serr != nil {
		return List3Item{}, serr
	}

	artno := parts[3]

	var name string
	if len(parts) == 5 {
		name = strings.TrimSpace(parts[4])
	}

	return List3Item{
		Contno: uint8(cn),
		BusID:  busid,
		Serno:  serno,
		Status: status,
		Artno:  artno,
		Name:   name,
	}, nil
}

// nLines collects the first n complete lines from buf, returning their
// trimmed contents, the total wire length consumed, and whether n lines
// were actually available.
func nLines(buf []byte, n int) (lines []string, total int, ok bool) {
	lines = make([]string, 0, n)
	off := 0
	for range n {
		line, wireLen, found := firstLine(buf[off:])
		if !found {
			return nil, 0, false
		}
		lines = append(lines, line)
		off += wireLen
	}
	return lines, off, true
}
