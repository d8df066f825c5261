package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/idfflash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/core/services"
)

var testImage = &domain.AppImage{
	Chip:     domain.ChipESP32,
	App:      domain.RomSegment{Addr: 0x10000, Data: make([]byte, 256)},
	AppSize:  256,
	PartSize: 1024,
	Digest:   "ab12",
}

var testPorts = []domain.SerialPortInfo{
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: 0x10c4, PID: 0xea60, Product: "CP2102"},
	{Name: "/dev/ttyS0"},
}

// mockFlashService implements driving.FlashService for testing.
type mockFlashService struct {
	req      driving.FlashRequest
	port     string
	addr     uint32
	size     uint32
	err      error
	skipped  []uint32
	recordID string
}

func (m *mockFlashService) Flash(_ context.Context, req driving.FlashRequest) (*domain.FlashReport, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	report := &domain.FlashReport{Port: "/dev/ttyUSB0", Image: testImage, Skipped: m.skipped}
	if m.recordID != "" {
		report.Record = &domain.FlashRecord{ID: m.recordID}
	}
	return report, nil
}

func (m *mockFlashService) BoardInfo(_ context.Context, port string) (*domain.BoardInfo, error) {
	m.port = port
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BoardInfo{Port: "/dev/ttyUSB0", Chip: domain.ChipESP32S3, MAC: "24:0a:c4:01:02:03"}, nil
}

func (m *mockFlashService) Checksum(_ context.Context, port string, addr, size uint32) (string, error) {
	m.port, m.addr, m.size = port, addr, size
	if m.err != nil {
		return "", m.err
	}
	return "5d41402abc4b2a76b9719d911017c592", nil
}

// mockImageService implements driving.ImageService for testing.
type mockImageService struct {
	saveReq driving.SaveRequest
	watched bool
	err     error
	report  *domain.ImageReport
}

func (m *mockImageService) Build(_ context.Context, _ driving.BuildRequest) (*domain.AppImage, error) {
	return testImage, m.err
}

func (m *mockImageService) Save(_ context.Context, req driving.SaveRequest) (*domain.AppImage, error) {
	m.saveReq = req
	if m.err != nil {
		return nil, m.err
	}
	return testImage, nil
}

func (m *mockImageService) Info(_ string) (*domain.ImageReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func (m *mockImageService) Watch(_ context.Context, req driving.SaveRequest, onSave func(*domain.AppImage, error)) error {
	m.saveReq = req
	m.watched = true
	onSave(testImage, nil)
	onSave(nil, errors.New("linker still writing"))
	return nil
}

// mockPortService implements driving.PortService for testing.
type mockPortService struct {
	ports  []domain.SerialPortInfo
	filter domain.PortFilter
}

func (m *mockPortService) List(_ context.Context, filter domain.PortFilter) ([]domain.SerialPortInfo, error) {
	m.filter = filter
	var out []domain.SerialPortInfo
	for _, p := range m.ports {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPortService) Select(_ context.Context, explicit string) (domain.SerialPortInfo, error) {
	if explicit != "" {
		return domain.SerialPortInfo{Name: explicit}, nil
	}
	if len(m.ports) == 0 {
		return domain.SerialPortInfo{}, domain.ErrNoSerialPorts
	}
	return m.ports[0], nil
}

// mockMonitorService implements driving.MonitorService for testing.
type mockMonitorService struct {
	req   driving.MonitorRequest
	input []byte
	runs  int
}

func (m *mockMonitorService) Run(_ context.Context, req driving.MonitorRequest) error {
	m.req = req
	m.runs++
	data, err := io.ReadAll(req.In)
	if err != nil {
		return err
	}
	m.input = data
	_, err = req.Out.Write([]byte("I (31) boot: ESP-IDF\n"))
	return err
}

type testServices struct {
	flash    *mockFlashService
	image    *mockImageService
	ports    *mockPortService
	monitor  *mockMonitorService
	settings *services.SettingsService
	history  *memory.HistoryStore
}

// setupTestServices installs mocks for device-facing services and real
// services over in-memory stores for the rest. The returned function
// restores the previous services and resets every flag.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		flash:    &mockFlashService{},
		image:    &mockImageService{},
		ports:    &mockPortService{ports: testPorts},
		monitor:  &mockMonitorService{},
		settings: services.NewSettingsService(memory.NewConfigStore()),
		history:  memory.NewHistoryStore(),
	}

	old := Services{
		Image:     imageService,
		Flash:     flashService,
		Port:      portService,
		Partition: partitionService,
		Settings:  settingsService,
		History:   historyService,
		Monitor:   monitorService,
	}
	SetServices(Services{
		Image:     ts.image,
		Flash:     ts.flash,
		Port:      ts.ports,
		Partition: services.NewPartitionService(),
		Settings:  ts.settings,
		History:   services.NewHistoryService(ts.history),
		Monitor:   ts.monitor,
	})

	return ts, func() {
		SetServices(old)
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
