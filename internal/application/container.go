package application

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	auditapp "github.com/khanhnv2901/netguard/internal/application/audit"
	"github.com/khanhnv2901/netguard/internal/capture"
	"github.com/khanhnv2901/netguard/internal/checker"
	"github.com/khanhnv2901/netguard/internal/domain/audit"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/hostaudit"
	"github.com/khanhnv2901/netguard/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/netguard/internal/opsec"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	Logger *zap.SugaredLogger

	// Repositories
	ReportRepo posture.Repository
	AuditRepo  audit.Repository

	// Services
	AuditService *auditapp.Service

	// Collaborators
	Interfaces checker.InterfaceSource
	IPLookup   checker.IPLookup
	Runner     hostaudit.CommandRunner
	Monitor    *capture.Monitor
}

// NewContainer creates a new application service container
func NewContainer(resultsDir string, logger *zap.SugaredLogger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	reportRepo, err := json.NewReportRepository(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create report repository: %w", err)
	}

	auditRepo, err := json.NewAuditRepository(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit repository: %w", err)
	}

	return &Container{
		Logger:       logger,
		ReportRepo:   reportRepo,
		AuditRepo:    auditRepo,
		AuditService: auditapp.NewService(auditRepo),
		Interfaces:   checker.OSInterfaceSource{},
		IPLookup:     checker.NewHTTPIPLookup(0),
		Runner:       hostaudit.NewExecRunner(0),
		Monitor:      capture.NewMonitor(nil, logger.Named("capture")),
	}, nil
}

// Collectors returns the static checks in evaluation order.
func (c *Container) Collectors() []checker.Collector {
	return []checker.Collector{
		checker.NewInterfaceVerifier(c.Interfaces, c.IPLookup, c.Logger.Named("interface")),
		checker.NewDNSVerifier(c.Logger.Named("dns")),
		hostaudit.NewAuditor(c.Runner, c.Logger.Named("hostaudit")),
		opsec.NewTester(c.Logger.Named("opsec")),
	}
}

// NewSupervisor wires a supervisor for one run of p.
func (c *Container) NewSupervisor(p policy.Policy, operator string) *supervisor.Supervisor {
	var monitor supervisor.TrafficMonitor
	if c.Monitor != nil {
		monitor = c.Monitor
	}

	s := supervisor.New(p, c.Collectors(), monitor, c.Logger.Named("supervisor"))
	s.Repository = c.ReportRepo
	s.Operator = operator
	if host, err := os.Hostname(); err == nil {
		s.Hostname = host
	}
	return s
}
