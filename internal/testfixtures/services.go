package testfixtures

import (
	"log/slog"

	"github.com/gusfragger/webot/internal/application"
	"github.com/gusfragger/webot/internal/datetime"
	"github.com/gusfragger/webot/internal/logging"
	"github.com/gusfragger/webot/internal/timezone"
)

// ServiceFactory assembles the application services with a deterministic
// clock and identifier sequence.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Zones       *timezone.Resolver
	Converter   *datetime.Converter
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory stopped at ReferenceTime that discards
// logs.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(ReferenceTime()),
		IDGenerator: NewIDGenerator("id"),
		Zones:       timezone.MustNewResolver(timezone.DefaultCacheSize),
		Logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Converter == nil {
		factory.Converter = datetime.NewConverter(factory.Zones)
	}
	return factory
}

// WithClock overrides the clock.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier sequence.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Ports are the repositories the services run against.
type Ports struct {
	Profiles  application.ProfileRepository
	Intervals application.IntervalRepository
	Meetings  application.MeetingRepository
	Jobs      application.JobRepository
}

// Services is the assembled service graph.
type Services struct {
	Profiles      *application.ProfileService
	Availability  *application.AvailabilityService
	Search        *application.SearchService
	Notifications *application.NotificationService
	Meetings      *application.MeetingService
	Composer      *application.ReminderComposer
}

// NewServices wires every service over ports.
func (f *ServiceFactory) NewServices(ports Ports) Services {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()

	availability := application.NewAvailabilityService(ports.Intervals, ports.Profiles, f.Zones, ids, now, f.Logger)
	notifications := application.NewNotificationService(ports.Jobs, ports.Meetings, ports.Profiles, f.Converter, ids, now, f.Logger)
	return Services{
		Profiles:      application.NewProfileService(ports.Profiles, f.Zones, now, f.Logger),
		Availability:  availability,
		Search:        application.NewSearchService(ports.Intervals, ports.Profiles, ports.Meetings, f.Zones, now, f.Logger),
		Notifications: notifications,
		Meetings:      application.NewMeetingService(ports.Meetings, availability, notifications, f.Zones, f.Converter, ids, now, f.Logger),
		Composer:      application.NewReminderComposer(ports.Meetings, ports.Profiles, f.Converter),
	}
}
