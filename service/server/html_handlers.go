package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/brojonat/solpay/service/access"
	"github.com/brojonat/solpay/service/dashboard"
	"github.com/brojonat/solpay/service/payment"
	"github.com/brojonat/solpay/service/solana"
	"github.com/brojonat/solpay/service/wallet"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	network   string
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files.
// network selects the explorer cluster used in transaction links.
func NewTemplateRenderer(network string, logger *slog.Logger) (*TemplateRenderer, error) {
	funcs := template.FuncMap{
		"sol":      solana.FormatSOL,
		"explorer": func(sig string) string { return explorerURL(network, sig) },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		network:   network,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

func (tr *TemplateRenderer) renderOrFail(w http.ResponseWriter, name string, data interface{}) {
	if err := tr.Render(w, name, data); err != nil {
		tr.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func explorerURL(network, sig string) string {
	u := "https://explorer.solana.com/tx/" + url.PathEscape(sig)
	if network == "devnet" {
		u += "?cluster=devnet"
	}
	return u
}

// pageDeps bundles what the HTML pages need.
type pageDeps struct {
	renderer  *TemplateRenderer
	flow      *payment.Flow
	dashboard *dashboard.Service
	gate      *access.Gate
	wallet    wallet.Connector
	logger    *slog.Logger
}

// page is the data every template receives.
type page struct {
	Title    string
	Identity identityResponse
	Receipt  *payment.Receipt
	Form     map[string]string
	Admin    *adminPage
}

func (d pageDeps) page(title string) page {
	return page{
		Title:    title,
		Identity: identityFor(d.wallet, d.gate, d.renderer.network),
		Form:     map[string]string{},
	}
}

// handleHomePage serves the landing page with links to both forms and, for
// the admin wallet, the dashboard.
func handleHomePage(d pageDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.renderer.renderOrFail(w, "home.html", d.page("solpay"))
	})
}

func handlePaymentPage(d pageDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.renderer.renderOrFail(w, "payment.html", d.page("Make a payment"))
	})
}

func handlePaymentSubmit(d pageDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		in := payment.PayInput{
			Recipient: r.PostForm.Get("recipient"),
			Amount:    r.PostForm.Get("amount"),
		}

		receipt, _ := d.flow.Pay(r.Context(), in)

		p := d.page("Make a payment")
		p.Receipt = receipt
		if receipt.Status != payment.StatusConfirmed {
			p.Form["recipient"] = in.Recipient
			p.Form["amount"] = in.Amount
		}
		d.renderer.renderOrFail(w, "payment.html", p)
	})
}

func handlePaymentRequestPage(d pageDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.renderer.renderOrFail(w, "payment-request.html", d.page("Request a payment"))
	})
}

func handlePaymentRequestSubmit(d pageDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		in := payment.RequestInput{
			Target: r.PostForm.Get("target"),
			Amount: r.PostForm.Get("amount"),
			Note:   r.PostForm.Get("note"),
		}

		receipt, _ := d.flow.Request(r.Context(), in)

		p := d.page("Request a payment")
		p.Receipt = receipt
		if receipt.Status != payment.StatusConfirmed {
			p.Form["target"] = in.Target
			p.Form["amount"] = in.Amount
			p.Form["note"] = in.Note
		}
		d.renderer.renderOrFail(w, "payment-request.html", p)
	})
}

// adminPage is the dashboard template data.
type adminPage struct {
	View        *dashboard.View
	Filter      dashboard.Filter
	Error       string
	LoadMoreURL string
}

// handleAdminPage renders the commission dashboard. The page embeds the
// snapshot ID in its filter form and "load more" link so that neither
// triggers another ledger fetch.
func handleAdminPage(d pageDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := d.page("Admin dashboard")
		p.Admin = &adminPage{}

		q, err := parseDashboardQuery(r)
		if err != nil {
			p.Admin.Error = err.Error()
			d.renderer.renderOrFail(w, "admin.html", p)
			return
		}
		p.Admin.Filter = q.Filter

		view, err := d.dashboard.View(r.Context(), q)
		if err != nil {
			d.logger.ErrorContext(r.Context(), "failed to load dashboard", "error", err)
			p.Admin.Error = "Failed to load commission history."
			d.renderer.renderOrFail(w, "admin.html", p)
			return
		}
		p.Admin.View = view

		if view.HasMore {
			next := url.Values{}
			next.Set("snapshot", view.SnapshotID)
			next.Set("offset", strconv.Itoa(view.NextOffset))
			if q.Filter.Signature != "" {
				next.Set("signature", q.Filter.Signature)
			}
			if q.Filter.Start != "" {
				next.Set("start", q.Filter.Start)
			}
			if q.Filter.End != "" {
				next.Set("end", q.Filter.End)
			}
			p.Admin.LoadMoreURL = "/admin?" + next.Encode()
		}

		d.renderer.renderOrFail(w, "admin.html", p)
	})
}
