package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"studypace/application/commands"
	"studypace/application/commands/bus"
	cmdhandlers "studypace/application/commands/handlers"
	"studypace/application/ports"
	"studypace/application/queries"
	querybus "studypace/application/queries/bus"
	qryhandlers "studypace/application/queries/handlers"
	"studypace/domain/analysis"
	domaincfg "studypace/domain/config"
	"studypace/domain/cogload"
	"studypace/domain/memory"
	"studypace/domain/ranking"
	"studypace/domain/scheduling"
	"studypace/infrastructure/config"
	"studypace/infrastructure/messaging"
	"studypace/infrastructure/messaging/eventbridge"
	dynamostore "studypace/infrastructure/persistence/dynamodb"
	memstore "studypace/infrastructure/persistence/memory"
	sqlitestore "studypace/infrastructure/persistence/sqlite"
	"studypace/interfaces/http/rest"
	"studypace/interfaces/http/rest/handlers"
	"studypace/pkg/auth"
)

// Persistence bundles the driver-specific port implementations so the rest
// of the graph stays driver-agnostic.
type Persistence struct {
	Entries     ports.EntryRepository
	Reviews     ports.ReviewRepository
	Profiles    ports.ProfileRepository
	Units       ports.UnitRepository
	Idempotency ports.IdempotencyStore
	Locker      ports.LearnerLocker
	Publisher   ports.EventPublisher
	Readiness   rest.ReadinessChecker

	close func() error
}

// Close releases driver resources such as database handles.
func (p *Persistence) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build()
}

// ProvideDomainConfig loads the tuning parameters for the scheduling domain
func ProvideDomainConfig(cfg *config.Config) *domaincfg.DomainConfig {
	return domaincfg.LoadDomainConfig(cfg.Environment)
}

// ProvideModel creates the memory model
func ProvideModel(dcfg *domaincfg.DomainConfig) *memory.Model {
	return memory.NewModel(dcfg)
}

// ProvideEstimator creates the cognitive load estimator
func ProvideEstimator(dcfg *domaincfg.DomainConfig) *cogload.Estimator {
	return cogload.NewEstimator(dcfg)
}

// ProvideRanker creates the priority ranker
func ProvideRanker(model *memory.Model) *ranking.Ranker {
	return ranking.NewRanker(model)
}

// ProvideBuilder creates the schedule builder
func ProvideBuilder(dcfg *domaincfg.DomainConfig, estimator *cogload.Estimator) *scheduling.Builder {
	return scheduling.NewBuilder(dcfg, estimator)
}

// ProvideAnalyzer creates the performance analyzer
func ProvideAnalyzer(dcfg *domaincfg.DomainConfig, model *memory.Model) *analysis.Analyzer {
	return analysis.NewAnalyzer(dcfg, model)
}

// ProvidePersistence selects the storage driver from configuration
func ProvidePersistence(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Persistence, error) {
	switch cfg.PersistenceDriver {
	case config.DriverDynamoDB:
		client, err := dynamostore.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("creating dynamodb client: %w", err)
		}
		ebClient, err := eventbridge.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("creating eventbridge client: %w", err)
		}
		return &Persistence{
			Entries:     dynamostore.NewEntryRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger),
			Reviews:     dynamostore.NewReviewRepository(client, cfg.DynamoDBTable, logger),
			Profiles:    dynamostore.NewProfileRepository(client, cfg.DynamoDBTable, logger),
			Units:       dynamostore.NewUnitRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger),
			Idempotency: dynamostore.NewIdempotencyStore(client, cfg.DynamoDBTable, 0, logger),
			Locker:      dynamostore.NewLearnerLocker(client, cfg.DynamoDBTable, logger),
			Publisher:   eventbridge.NewPublisher(ebClient, cfg.EventBusName, logger),
		}, nil

	case config.DriverSQLite:
		db, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return &Persistence{
			Entries:     sqlitestore.NewEntryRepository(db, logger),
			Reviews:     sqlitestore.NewReviewRepository(db, logger),
			Profiles:    sqlitestore.NewProfileRepository(db, logger),
			Units:       sqlitestore.NewUnitRepository(db, logger),
			Idempotency: sqlitestore.NewIdempotencyStore(db, logger),
			// Locking only has to fence goroutines within this process when
			// the store is an embedded database
			Locker:    memstore.NewLocker(),
			Publisher: messaging.NewLogPublisher(logger),
			Readiness: func(ctx context.Context) error { return db.PingContext(ctx) },
			close:     db.Close,
		}, nil

	case config.DriverMemory:
		return &Persistence{
			Entries:     memstore.NewEntryRepository(),
			Reviews:     memstore.NewReviewRepository(),
			Profiles:    memstore.NewProfileRepository(),
			Units:       memstore.NewUnitRepository(),
			Idempotency: memstore.NewIdempotencyStore(),
			Locker:      memstore.NewLocker(),
			Publisher:   memstore.NewPublisher(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.PersistenceDriver)
	}
}

// ProvideGenerateOrchestrator creates the schedule generation orchestrator
func ProvideGenerateOrchestrator(
	p *Persistence,
	model *memory.Model,
	ranker *ranking.Ranker,
	builder *scheduling.Builder,
	estimator *cogload.Estimator,
	dcfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) *cmdhandlers.GenerateScheduleOrchestrator {
	return cmdhandlers.NewGenerateScheduleOrchestrator(
		p.Entries, p.Reviews, p.Profiles, p.Units, p.Locker, p.Publisher,
		model, ranker, builder, estimator, dcfg, logger)
}

// ProvideRecordPerformanceHandler creates the performance recording handler
func ProvideRecordPerformanceHandler(
	p *Persistence,
	model *memory.Model,
	analyzer *analysis.Analyzer,
	estimator *cogload.Estimator,
	dcfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) *cmdhandlers.RecordPerformanceHandler {
	return cmdhandlers.NewRecordPerformanceHandler(
		p.Entries, p.Reviews, p.Profiles, p.Units, p.Idempotency, p.Locker, p.Publisher,
		model, analyzer, estimator, dcfg, logger)
}

// ProvideAdaptSchedulesHandler creates the schedule adaptation handler
func ProvideAdaptSchedulesHandler(
	p *Persistence,
	model *memory.Model,
	dcfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) *cmdhandlers.AdaptSchedulesHandler {
	return cmdhandlers.NewAdaptSchedulesHandler(
		p.Entries, p.Reviews, p.Profiles, p.Units, p.Locker, p.Publisher, model, dcfg, logger)
}

// ProvideEntryLifecycleHandler creates the entry lifecycle handler
func ProvideEntryLifecycleHandler(p *Persistence, logger *zap.Logger) *cmdhandlers.EntryLifecycleHandler {
	return cmdhandlers.NewEntryLifecycleHandler(p.Entries, p.Locker, p.Publisher, logger)
}

// ProvideSweepMissedHandler creates the missed-entry sweeper handler
func ProvideSweepMissedHandler(p *Persistence, dcfg *domaincfg.DomainConfig, logger *zap.Logger) *cmdhandlers.SweepMissedHandler {
	return cmdhandlers.NewSweepMissedHandler(p.Entries, p.Locker, p.Publisher, dcfg, logger)
}

// ProvidePerformanceQueryHandler creates the performance query handler
func ProvidePerformanceQueryHandler(p *Persistence, analyzer *analysis.Analyzer, logger *zap.Logger) *qryhandlers.PerformanceQueryHandler {
	return qryhandlers.NewPerformanceQueryHandler(p.Reviews, p.Entries, p.Profiles, p.Units, analyzer, logger)
}

// ProvideListEntriesHandler creates the entry listing handler
func ProvideListEntriesHandler(p *Persistence, logger *zap.Logger) *qryhandlers.ListEntriesHandler {
	return qryhandlers.NewListEntriesHandler(p.Entries, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	generate *cmdhandlers.GenerateScheduleOrchestrator,
	record *cmdhandlers.RecordPerformanceHandler,
	adapt *cmdhandlers.AdaptSchedulesHandler,
	lifecycle *cmdhandlers.EntryLifecycleHandler,
	sweeper *cmdhandlers.SweepMissedHandler,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus()

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.GenerateScheduleCommand{}, &CommandHandlerAdapter{func(ctx context.Context, cmd bus.Command) error {
			c, ok := cmd.(commands.GenerateScheduleCommand)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			_, err := generate.Handle(ctx, c)
			return err
		}}},
		{commands.RecordPerformanceCommand{}, &CommandHandlerAdapter{func(ctx context.Context, cmd bus.Command) error {
			c, ok := cmd.(commands.RecordPerformanceCommand)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			_, err := record.Handle(ctx, c)
			return err
		}}},
		{commands.AdaptSchedulesCommand{}, &CommandHandlerAdapter{func(ctx context.Context, cmd bus.Command) error {
			c, ok := cmd.(commands.AdaptSchedulesCommand)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			_, err := adapt.Handle(ctx, c)
			return err
		}}},
		{commands.CompleteEntryCommand{}, &CommandHandlerAdapter{func(ctx context.Context, cmd bus.Command) error {
			c, ok := cmd.(commands.CompleteEntryCommand)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			_, err := lifecycle.HandleComplete(ctx, c)
			return err
		}}},
		{commands.RescheduleEntryCommand{}, &CommandHandlerAdapter{func(ctx context.Context, cmd bus.Command) error {
			c, ok := cmd.(commands.RescheduleEntryCommand)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			_, err := lifecycle.HandleReschedule(ctx, c)
			return err
		}}},
		{commands.SweepMissedCommand{}, sweeper},
	}

	for _, reg := range registrations {
		if err := commandBus.Register(reg.cmd, reg.handler); err != nil {
			return nil, err
		}
	}

	return commandBus, nil
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	performance *qryhandlers.PerformanceQueryHandler,
	list *qryhandlers.ListEntriesHandler,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetLearningCurveQuery{}, &QueryHandlerAdapter{func(ctx context.Context, q querybus.Query) (interface{}, error) {
			qq, ok := q.(queries.GetLearningCurveQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type %T", q)
			}
			return performance.HandleLearningCurve(ctx, qq)
		}}},
		{queries.GetPerformanceSummaryQuery{}, &QueryHandlerAdapter{func(ctx context.Context, q querybus.Query) (interface{}, error) {
			qq, ok := q.(queries.GetPerformanceSummaryQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type %T", q)
			}
			return performance.HandleSummary(ctx, qq)
		}}},
		{queries.ListEntriesQuery{}, &QueryHandlerAdapter{func(ctx context.Context, q querybus.Query) (interface{}, error) {
			qq, ok := q.(queries.ListEntriesQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type %T", q)
			}
			return list.Handle(ctx, qq)
		}}},
	}

	for _, reg := range registrations {
		if err := queryBus.Register(reg.query, reg.handler); err != nil {
			return nil, err
		}
	}

	return queryBus, nil
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideScheduleHandler creates the schedule HTTP handler
func ProvideScheduleHandler(
	generate *cmdhandlers.GenerateScheduleOrchestrator,
	adapt *cmdhandlers.AdaptSchedulesHandler,
	lifecycle *cmdhandlers.EntryLifecycleHandler,
	list *qryhandlers.ListEntriesHandler,
	logger *zap.Logger,
) *handlers.ScheduleHandler {
	return handlers.NewScheduleHandler(generate, adapt, lifecycle, list, logger)
}

// ProvidePerformanceHandler creates the performance HTTP handler
func ProvidePerformanceHandler(
	record *cmdhandlers.RecordPerformanceHandler,
	performance *qryhandlers.PerformanceQueryHandler,
	logger *zap.Logger,
) *handlers.PerformanceHandler {
	return handlers.NewPerformanceHandler(record, performance, logger)
}

// ProvideRouter creates the configured HTTP router
func ProvideRouter(
	cfg *config.Config,
	schedules *handlers.ScheduleHandler,
	performance *handlers.PerformanceHandler,
	validator *auth.JWTValidator,
	p *Persistence,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(
		cfg,
		schedules,
		performance,
		validator,
		auth.NewIPRateLimiter(cfg.RateLimitPerMin),
		auth.NewUserRateLimiter(cfg.RateLimitPerMin),
		p.Readiness,
		logger,
	)
}
