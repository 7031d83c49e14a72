package debtcase

import (
	"context"
	"log/slog"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/realtime"
	v1 "debtease/shared/contracts/realtime/v1"
)

// Endpoint templates, relative to the API base.
const (
	casesEndpoint         = "debt/cases"
	creditorCasesEndpoint = "debt/cases/creditor/{username}"
	debtorCasesEndpoint   = "debt/cases/debtor/{username}"
	caseEndpoint          = "debt/cases/{id}"
	creditorCaseEndpoint  = "debt/cases/{id}/creditors/{creditorId}"
	uploadEndpoint        = "debt/cases/creditors/{username}/file"
	reportEndpoint        = "debt/cases/generate/report/debtor/{username}"
	strategyEndpoint      = "debt/cases/debtor/{username}/payment/strategy"
	typesEndpoint         = "debtcase/types"
	paymentsEndpoint      = "payments/{username}"
	payEndpoint           = "payments/{id}/pay"
	exampleCSVEndpoint    = "files/debt/case/example"
	agreementEndpoint     = "files/agreement/form"
)

// UploadField is the multipart field carrying the CSV.
const UploadField = "file"

// Service issues debt case calls through an api.Client. Each call runs its
// own hook, so the returned error is always a normalized *api.APIError.
type Service struct {
	c   *api.Client
	log *slog.Logger
}

func NewService(c *api.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{c: c, log: log}
}

// List returns the cases visible to role.
func (s *Service) List(ctx context.Context, role session.Role, username string) ([]DebtCase, error) {
	endpoint, vars, err := ListEndpoint(role, username)
	if err != nil {
		return nil, err
	}
	return api.NewReader[[]DebtCase](s.c, endpoint, vars).GetData(ctx)
}

// ListMine lists cases for the signed-in user.
func (s *Service) ListMine(ctx context.Context) ([]DebtCase, error) {
	st := s.c.Session()
	return s.List(ctx, st.Role(), st.Username())
}

func (s *Service) Get(ctx context.Context, id int) (DebtCase, error) {
	return api.NewReader[DebtCase](s.c, caseEndpoint, api.Vars{"id": id}).GetData(ctx)
}

// Edit updates case id owned by creditorID.
func (s *Service) Edit(ctx context.Context, id, creditorID int, in EditRequest) (DebtCase, error) {
	h := api.NewEditor[DebtCase](s.c, creditorCaseEndpoint, api.Vars{"id": id, "creditorId": creditorID})
	return h.EditData(ctx, in)
}

// Delete removes case id owned by creditorID. A 204 is success.
func (s *Service) Delete(ctx context.Context, id, creditorID int) error {
	h := api.NewDeleter(s.c, creditorCaseEndpoint, api.Vars{"id": id, "creditorId": creditorID})
	if err := h.DeleteData(ctx); err != nil {
		return err
	}
	s.log.Info("debtcase.delete", "id", id, "creditor_id", creditorID)
	return nil
}

// UploadCSV submits a case file for username. The server enriches the rows
// asynchronously and pushes the results on the user's realtime topic; the
// returned text is its acknowledgement.
func (s *Service) UploadCSV(ctx context.Context, username, filename string, data []byte) (string, error) {
	h := api.NewCreator[[]byte](s.c, uploadEndpoint, api.Vars{"username": username}, api.ResponseBinary())
	h.OnChange(s.traceState("debtcase.upload.state", "file", filename))
	ack, err := h.PostData(ctx, api.NewMultipart().AddFile(UploadField, filename, data))
	if err != nil {
		return "", err
	}
	s.log.Info("debtcase.upload", "username", username, "file", filename, "bytes", len(data))
	return string(ack), nil
}

// Report downloads the PDF report of a debtor's cases.
func (s *Service) Report(ctx context.Context, username string) ([]byte, error) {
	h := api.NewReader[[]byte](s.c, reportEndpoint, api.Vars{"username": username}, api.ResponseBinary())
	h.OnChange(s.traceState("debtcase.report.state", "username", username))
	return h.GetData(ctx)
}

// traceState logs the loading transitions of slow server-side operations.
func (s *Service) traceState(event string, args ...any) func(api.State[[]byte]) {
	return func(st api.State[[]byte]) {
		s.log.Debug(event, append(args, "loading", st.Loading, "failed", st.Err != nil)...)
	}
}

// Strategy computes snowball and avalanche payoff schedules for a debtor.
func (s *Service) Strategy(ctx context.Context, username string, in StrategyRequest) (PaymentStrategy, error) {
	h := api.NewCreator[PaymentStrategy](s.c, strategyEndpoint, api.Vars{"username": username})
	return h.PostData(ctx, in)
}

// Pay charges a payment against case id and returns the server's receipt text.
func (s *Service) Pay(ctx context.Context, id int, in PaymentRequest) (string, error) {
	h := api.NewCreator[[]byte](s.c, payEndpoint, api.Vars{"id": id}, api.ResponseBinary())
	out, err := h.PostData(ctx, in)
	if err != nil {
		return "", err
	}
	s.log.Info("debtcase.pay", "id", id, "amount", in.PaymentAmount)
	return string(out), nil
}

func (s *Service) Payments(ctx context.Context, username string) ([]Payment, error) {
	return api.NewReader[[]Payment](s.c, paymentsEndpoint, api.Vars{"username": username}).GetData(ctx)
}

func (s *Service) Types(ctx context.Context) ([]DebtCaseType, error) {
	return api.NewReader[[]DebtCaseType](s.c, typesEndpoint, nil).GetData(ctx)
}

// ExampleCSV downloads the upload template.
func (s *Service) ExampleCSV(ctx context.Context) ([]byte, error) {
	return api.NewReader[[]byte](s.c, exampleCSVEndpoint, nil, api.ResponseBinary()).GetData(ctx)
}

// AgreementForm downloads the blank agreement PDF.
func (s *Service) AgreementForm(ctx context.Context) ([]byte, error) {
	return api.NewReader[[]byte](s.c, agreementEndpoint, nil, api.ResponseBinary()).GetData(ctx)
}

// Subscriber is the part of realtime.Manager that Watch needs.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, cb realtime.Callback) (realtime.Subscription, error)
}

// Watch merges cases pushed on username's enrichment topic into feed.
// notify, when set, is called for every decoded case with whether it was
// added; a false value means feed already held the case.
func (s *Service) Watch(ctx context.Context, rt Subscriber, username string, feed *Feed, notify func(c DebtCase, added bool)) (realtime.Subscription, error) {
	topic := v1.EnrichedDebtCasesTopic(username)
	return rt.Subscribe(ctx, topic, func(msg v1.Message) {
		var c DebtCase
		if err := msg.Decode(&c); err != nil {
			s.log.Warn("debtcase.push.decode.fail", "topic", msg.Topic, "err", err)
			return
		}
		added := feed.Merge(c)
		if added {
			s.log.Info("debtcase.push", "id", c.ID, "debtor", c.Debtor.FullName())
		} else {
			s.log.Debug("debtcase.push.duplicate", "id", c.ID)
		}
		if notify != nil {
			notify(c, added)
		}
	})
}

var _ Subscriber = (*realtime.Manager)(nil)
