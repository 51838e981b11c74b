package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-ble/ble"
	"github.com/srg/btrelay/internal/relay"
	"github.com/srg/btrelay/internal/scanner"
	"github.com/srg/btrelay/internal/testutils"
	"github.com/srg/btrelay/internal/testutils/mocks"
	"github.com/srg/btrelay/pkg/sensor"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testAddrA = "a4:c1:38:00:00:01"
	testAddrB = "a4:c1:38:00:00:02"
)

// CommandTestSuite runs commands against a fresh command tree per call.
type CommandTestSuite struct {
	suite.Suite
	dir    string
	stderr *bytes.Buffer
}

func (s *CommandTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.stderr = &bytes.Buffer{}
}

// ExecuteCommand runs btrelay with args and returns its stdout.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(s.stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (s *CommandTestSuite) writeCapture(results ...relay.ScanResult) string {
	var sb strings.Builder
	sb.WriteString("# test capture\n")
	for _, res := range results {
		sb.WriteString(scanner.FormatLine(res))
		sb.WriteByte('\n')
	}
	path := filepath.Join(s.dir, "capture.txt")
	s.Require().NoError(os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func bthomeScan(addr string, payload ...byte) relay.ScanResult {
	a, err := sensor.ParseAddr(addr)
	if err != nil {
		panic(err)
	}
	return relay.ScanResult{
		Addr:    a,
		RSSI:    -60,
		AdvData: testutils.NewAdvertisementBuilder().WithBTHome(payload...).AD(),
	}
}

func (s *CommandTestSuite) TestDecodeServiceData() {
	out, err := s.ExecuteCommand("decode", "40 00 01 02 c4 09 03 bf 13")
	s.Require().NoError(err)
	s.Contains(out, "BTHomeData(00:00:00:00:00:00): v 2 enc 0")
	s.Contains(out, "packet_id:0=1")
	s.Contains(out, "temperature:0=25.000000")
	s.Contains(out, "humidity:0")
}

func (s *CommandTestSuite) TestDecodeServiceDataJSON() {
	out, err := s.ExecuteCommand("decode", "--json", "--addr", testAddrA, "400001", "02c409")
	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(out, `{
		"addr": "a4:c1:38:00:00:01",
		"version": 2,
		"encrypted": false,
		"trigger_based": false,
		"values": {"packet_id:0": 1, "temperature:0": 25}
	}`)
}

func (s *CommandTestSuite) TestDecodeErrors() {
	_, err := s.ExecuteCommand("decode", "20 02 c4 09")
	s.Require().Error(err)
	s.Contains(FormatUserError(err), "only BTHome v2 is supported")

	_, err = s.ExecuteCommand("decode", "41 02 c4 09")
	s.Require().Error(err)
	s.Contains(FormatUserError(err), "bind key")

	_, err = s.ExecuteCommand("decode", "4x")
	s.Error(err)

	_, err = s.ExecuteCommand("decode")
	s.Error(err, "decode MUST require input")
}

func (s *CommandTestSuite) TestDecodeAdvertisement() {
	out, err := s.ExecuteCommand("decode", "--ad", "--addr", testAddrA, "02 01 06 09 16 d2 fc 40 00 01 02 c4 09")
	s.Require().NoError(err)
	s.Contains(out, "Advertisement a4:c1:38:00:00:01")
	s.Contains(out, "Sensor BTHome sid 04000001")
	s.Contains(out, "subid 512")
	s.Contains(out, "temperature:0=25.000000")
}

func (s *CommandTestSuite) TestDecodeAdvertisementJSON() {
	out, err := s.ExecuteCommand("decode", "--ad", "--json", "--addr", testAddrA, "02 01 06 09 16 d2 fc 40 00 01 02 c4 09")
	s.Require().NoError(err)

	var got struct {
		Sensor   string        `json:"sensor"`
		SID      string        `json:"sid"`
		Elements []elementJSON `json:"elements"`
		Readings []sensor.Data `json:"readings"`
	}
	s.Require().NoError(json.Unmarshal([]byte(out), &got))
	s.Equal("BTHome", got.Sensor)
	s.Equal("04000001", got.SID)
	s.Len(got.Elements, 2)
	s.Require().Len(got.Readings, 1)
	s.Equal(uint16(0x0200), got.Readings[0].SubID)
	s.Equal(25.0, got.Readings[0].Value)
}

func (s *CommandTestSuite) TestDecodeUnknownAdvertisement() {
	out, err := s.ExecuteCommand("decode", "--ad", "05 09 6c 61 6d 70")
	s.ErrorIs(err, ErrNoSensor)
	s.Contains(out, "6c 61 6d 70", "elements MUST still be listed")
}

func (s *CommandTestSuite) TestObjects() {
	out, err := s.ExecuteCommand("objects")
	s.Require().NoError(err)
	s.Contains(out, "ID")
	s.Contains(out, "temperature")
	s.Contains(out, "packet_id")

	out, err = s.ExecuteCommand("objects", "--category", "event", "--json")
	s.Require().NoError(err)
	var objs []map[string]any
	s.Require().NoError(json.Unmarshal([]byte(out), &objs))
	s.NotEmpty(objs)
	for _, o := range objs {
		s.Contains([]any{"button", "dimmer"}, o["type"])
	}

	out, err = s.ExecuteCommand("objects", "--category", "event")
	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T()).Assert(out, `
ID    NAME    CATEGORY  FORMAT  SIZE  EXP  UNIT
0x3A  button  event     uint    1     0
0x3C  dimmer  event     uint    2     0
`)

	_, err = s.ExecuteCommand("objects", "--category", "nope")
	s.Error(err)
}

func (s *CommandTestSuite) TestReplayStoresReadings() {
	// GOAL: Verify a recorded capture flows through the relay into SQLite
	//
	// TEST SCENARIO: two BTHome sensors, one repeated packet; the history
	// command then reads the stored temperature back

	capture := s.writeCapture(
		bthomeScan(testAddrA, 0x40, 0x00, 0x01, 0x02, 0xc4, 0x09),
		bthomeScan(testAddrA, 0x40, 0x00, 0x01, 0x02, 0xc4, 0x09),
		bthomeScan(testAddrB, 0x40, 0x00, 0x07, 0x03, 0xbf, 0x13),
	)
	db := filepath.Join(s.dir, "readings.db")

	out, err := s.ExecuteCommand("replay", "--quiet", "--events", "--db", db, capture)
	s.Require().NoError(err)
	s.Contains(out, "new "+testAddrA+" BTHome sid 04000001")
	s.Contains(out, "new "+testAddrB+" BTHome sid 04000002")
	s.Contains(out, "ADDRESS")

	out, err = s.ExecuteCommand("history", "--db", db, "--json", "04000001")
	s.Require().NoError(err)
	var readings []sensor.Data
	s.Require().NoError(json.Unmarshal([]byte(out), &readings))
	s.Require().Len(readings, 1, "repeated packet MUST NOT be stored twice")
	s.Equal(uint16(0x0200), readings[0].SubID)
	s.Equal(25.0, readings[0].Value)

	out, err = s.ExecuteCommand("history", "--db", db, "04000002")
	s.Require().NoError(err)
	s.Contains(out, "768")
	s.Contains(out, "50.55")
}

func (s *CommandTestSuite) TestReplayFlushAndConfig() {
	capture := s.writeCapture(bthomeScan(testAddrA, 0x40, 0x00, 0x01, 0x02, 0xc4, 0x09))
	db := filepath.Join(s.dir, "flush.db")
	cfgPath := filepath.Join(s.dir, "btrelay.yaml")
	s.Require().NoError(os.WriteFile(cfgPath, []byte("log_level: warn\nstore:\n  path: "+db+"\n"), 0o644))

	_, err := s.ExecuteCommand("replay", "--config", cfgPath, "--quiet", "--flush", capture)
	s.Require().NoError(err)

	out, err := s.ExecuteCommand("history", "--config", cfgPath, "--json", "04000001")
	s.Require().NoError(err)
	var readings []sensor.Data
	s.Require().NoError(json.Unmarshal([]byte(out), &readings))
	s.Len(readings, 2, "flush MUST add a full report")
}

func (s *CommandTestSuite) TestReplayErrors() {
	_, err := s.ExecuteCommand("replay", filepath.Join(s.dir, "missing.txt"))
	s.Error(err)

	_, err = s.ExecuteCommand("replay", "--allow", "nope", s.writeCapture())
	s.ErrorContains(err, "scan.allow")

	_, err = s.ExecuteCommand("replay", "--log-level", "loud", s.writeCapture())
	s.ErrorContains(err, "invalid log level")
}

func (s *CommandTestSuite) TestHistoryNeedsDatabase() {
	_, err := s.ExecuteCommand("history", "04000001")
	s.ErrorContains(err, "no database")

	_, err = s.ExecuteCommand("history", "--db", filepath.Join(s.dir, "x.db"), "not-hex")
	s.ErrorContains(err, "invalid sensor id")
}

func (s *CommandTestSuite) TestScanRecordsAndRelays() {
	orig := scanner.DeviceFactory
	defer func() { scanner.DeviceFactory = orig }()

	adv := testutils.NewAdvertisementBuilder().
		WithAddress(testAddrA).
		WithRSSI(-55).
		WithBTHome(0x40, 0x00, 0x01, 0x02, 0xc4, 0x09).
		Build()
	dev := &mocks.MockScanDevice{}
	dev.On("Scan", mock.Anything, true, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(ble.AdvHandler)(adv)
		}).
		Return(nil)
	scanner.DeviceFactory = func() (scanner.ScanDevice, error) { return dev, nil }

	record := filepath.Join(s.dir, "scan.txt")
	out, err := s.ExecuteCommand("scan", "--quiet", "--events", "--record", record)
	s.Require().NoError(err)
	s.Contains(out, "new "+testAddrA+" BTHome sid 04000001 rssi -55")

	data, err := os.ReadFile(record)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(data), testAddrA+" -55 "), "capture MUST use the replay format")

	res, err := scanner.ParseLine(strings.TrimSpace(string(data)))
	s.Require().NoError(err)
	s.Equal(-55, res.RSSI)
	dev.AssertExpectations(s.T())
}

func (s *CommandTestSuite) TestScanAdapterError() {
	orig := scanner.DeviceFactory
	defer func() { scanner.DeviceFactory = orig }()
	scanner.DeviceFactory = func() (scanner.ScanDevice, error) {
		return nil, &scanner.AdapterError{State: scanner.BluetoothOff}
	}

	_, err := s.ExecuteCommand("scan")
	s.Require().Error(err)
	s.Contains(FormatUserError(err), "Bluetooth is turned off")
}

func TestCommandTestSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}
