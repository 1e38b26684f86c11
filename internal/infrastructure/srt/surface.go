// Package srt drives the SRT web site over plain HTTP form posts and reads
// its search result table.
package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/logging"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://etk.srail.kr"
	defaultUA      = "Mozilla/5.0 (X11; Linux x86_64) srt-reserver/1.0"

	loginFormPath = "/cmc/01/selectLoginForm.do"
	loginPath     = "/cmc/01/selectLoginInfo.do"
	searchPath    = "/hpg/hra/01/selectScheduleList.do"
)

// ErrUnexpectedStatus is wrapped by HTTPError.
var ErrUnexpectedStatus = errors.New("unexpected http status")

type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("srt %s %s: http %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error { return ErrUnexpectedStatus }

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	Logger            *slog.Logger
}

// Opener starts independent site sessions that share one request budget.
type Opener struct {
	opts    Options
	base    *url.URL
	limiter *rate.Limiter
}

func NewOpener(opts Options) (*Opener, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUA
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid SRT base url %q", opts.BaseURL)
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Opener{
		opts:    opts,
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
	}, nil
}

// Open returns a fresh session with its own cookie jar.
func (o *Opener) Open(ctx context.Context) (reservation.BookingSurface, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Surface{
		http:    &http.Client{Timeout: o.opts.Timeout, Jar: jar},
		base:    o.base,
		ua:      o.opts.UserAgent,
		limiter: o.limiter,
		logger:  logging.OrNop(o.opts.Logger),
	}, nil
}

// Surface is one signed-in browsing session. It is used by a single poller
// and is not safe for concurrent use.
type Surface struct {
	http    *http.Client
	base    *url.URL
	ua      string
	limiter *rate.Limiter
	logger  *slog.Logger

	search url.Values
	page   *html.Node
	// candidates are the rows read by the last FetchCandidateWindow of the
	// current page. Any new page or action clears them.
	candidates map[int]resultRow
}

var _ reservation.BookingSurface = (*Surface)(nil)

func (s *Surface) Authenticate(ctx context.Context, id, password string) (bool, error) {
	if _, err := s.get(ctx, s.resolve(loginFormPath)); err != nil {
		return false, fmt.Errorf("load login form: %w", err)
	}
	form := url.Values{
		"srchDvCd":    {loginKind(id)},
		"srchDvNm":    {id},
		"hmpgPwdCphd": {password},
	}
	doc, err := s.post(ctx, loginPath, form)
	if err != nil {
		return false, fmt.Errorf("submit login: %w", err)
	}
	return strings.Contains(textContent(doc), signedInMarker), nil
}

// loginKind picks the site's login type: 1 membership number, 2 email, 3 phone.
func loginKind(id string) string {
	switch {
	case strings.Contains(id, "@"):
		return "2"
	case strings.Count(id, "-") == 2 || strings.HasPrefix(id, "01"):
		return "3"
	default:
		return "1"
	}
}

func (s *Surface) SubmitSearch(ctx context.Context, t trip.Request) error {
	s.search = url.Values{
		"dptRsStnCdNm":    {t.Departure()},
		"arvRsStnCdNm":    {t.Arrival()},
		"dptDt":           {t.DateString()},
		"dptTm":           {t.HourString() + "0000"},
		"psgInfoPerPrnb1": {strconv.Itoa(t.Passengers())},
	}
	return s.runSearch(ctx)
}

func (s *Surface) ResubmitSearch(ctx context.Context) error {
	if s.search == nil {
		return errors.New("resubmit before any search was submitted")
	}
	return s.runSearch(ctx)
}

func (s *Surface) runSearch(ctx context.Context) error {
	s.page = nil
	s.candidates = nil
	doc, err := s.post(ctx, searchPath, s.search)
	if err != nil {
		return err
	}
	s.page = doc
	return nil
}

func (s *Surface) FetchCandidateWindow(ctx context.Context, start, end int) ([]reservation.CandidateRow, error) {
	s.candidates = nil
	if start < 1 || end < start {
		return nil, fmt.Errorf("%w: %d-%d", trip.ErrInvalidWindow, start, end)
	}
	if s.page == nil {
		return nil, reservation.ErrListingNotFound
	}
	rows, ok := resultRows(s.page)
	if !ok {
		return nil, reservation.ErrListingNotFound
	}

	s.candidates = make(map[int]resultRow, end-start+1)
	out := make([]reservation.CandidateRow, 0, end-start+1)
	for pos := start; pos <= end; pos++ {
		if pos < 1 || pos > len(rows) {
			out = append(out, reservation.CandidateRow{Position: pos, Err: fmt.Errorf("train %d not listed", pos)})
			continue
		}
		row := rows[pos-1]
		s.candidates[pos] = row
		out = append(out, reservation.CandidateRow{
			Position:     pos,
			SeatText:     textContent(row.cell(seatColumn)),
			WaitlistText: textContent(row.cell(waitlistColumn)),
		})
	}
	return out, nil
}

func (s *Surface) AttemptBook(ctx context.Context, position int) (bool, error) {
	return s.follow(ctx, position, seatColumn)
}

func (s *Surface) AttemptWaitlist(ctx context.Context, position int) (bool, error) {
	return s.follow(ctx, position, waitlistColumn)
}

// follow clicks the link in one cell of a freshly read row. The result page
// stays loaded afterwards, the way a browser returns to it with back.
func (s *Surface) follow(ctx context.Context, position, column int) (bool, error) {
	row, ok := s.candidates[position]
	s.candidates = nil
	if !ok {
		return false, fmt.Errorf("%w: train %d", reservation.ErrStaleCandidate, position)
	}

	link := findFirstLink(row.cell(column))
	if link == "" {
		return false, nil
	}
	doc, err := s.get(ctx, s.resolve(link))
	if err != nil {
		return false, err
	}
	return findByID(doc, confirmationID) != nil, nil
}

func findFirstLink(cell *html.Node) string {
	if cell == nil {
		return ""
	}
	var href string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			if v, ok := attr(n, "href"); ok && v != "" && v != "#" && !strings.HasPrefix(v, "javascript:") {
				href = v
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(cell)
	return href
}

func (s *Surface) Close() error {
	s.page = nil
	s.candidates = nil
	s.search = nil
	s.http.CloseIdleConnections()
	return nil
}

func (s *Surface) resolve(ref string) string {
	u, err := s.base.Parse(ref)
	if err != nil {
		return s.base.String() + ref
	}
	return u.String()
}

func (s *Surface) get(ctx context.Context, target string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

func (s *Surface) post(ctx context.Context, path string, form url.Values) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.resolve(path), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *Surface) do(req *http.Request) (*html.Node, error) {
	if err := s.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", s.ua)
	req.Header.Set("referer", s.base.String()+"/main/main.do")

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	s.logger.Debug("srt request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	body := io.LimitReader(resp.Body, maxPageBytes)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, &HTTPError{Method: req.Method, URL: req.URL.Path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.URL.Path, err)
	}
	return doc, nil
}
