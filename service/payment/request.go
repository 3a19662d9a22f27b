package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// MemoPrefix starts every payment-request memo.
const MemoPrefix = "solpay:request:"

// RequestInput is the payment-request form. Target is the wallet being asked
// to pay.
type RequestInput struct {
	Target string `json:"target"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

// Request sends a marker transaction from the connected wallet to Target.
// The marker carries the configured transfer amounts plus a memo encoding the
// request ID, the requested lamports and the optional note. No commission is
// taken. The receipt carries a Solana Pay link and QR code that let the
// target pay the requester.
func (f *Flow) Request(ctx context.Context, in RequestInput) (*Receipt, error) {
	r := &Receipt{Kind: KindRequest, Status: StatusIdle, CreatedAt: f.now()}
	r.advance(StatusValidating)

	requester, ok := f.wallet.Identity()
	if !ok {
		return f.reject(ctx, r, invalid("wallet", MsgConnectWallet, ErrNotConnected))
	}
	if strings.TrimSpace(in.Target) == "" {
		return f.reject(ctx, r, invalid("target", MsgRequestMissing, ErrInvalidRecipient))
	}
	if strings.TrimSpace(in.Amount) == "" {
		return f.reject(ctx, r, invalid("amount", MsgRequestMissing, ErrInvalidAmount))
	}
	target, verr := parseAddress("target", in.Target, MsgInvalidAddress)
	if verr != nil {
		return f.reject(ctx, r, verr)
	}
	lamports, verr := parseAmount(in.Amount, MsgInvalidAmount)
	if verr != nil {
		return f.reject(ctx, r, verr)
	}
	note := strings.TrimSpace(in.Note)
	if !utf8.ValidString(note) {
		return f.reject(ctx, r, invalid("note", MsgInvalidNote, ErrInvalidNote))
	}
	if f.cfg.MaxNoteBytes > 0 && len(note) > f.cfg.MaxNoteBytes {
		return f.reject(ctx, r, invalid("note", MsgNoteTooLong, ErrInvalidNote))
	}

	r.RequestID = uuid.New().String()
	r.Payer = requester.String()
	r.Recipient = target.String()
	r.GrossLamports = lamports
	r.NetLamports = lamports
	r.Note = note
	r.PaymentURL = buildSolanaPayURL(requester.String(), lamports, r.RequestID, f.cfg.Label, note)
	qr, err := generateQRCode(r.PaymentURL)
	if err != nil {
		f.logger.WarnContext(ctx, "failed to generate QR code",
			"request_id", r.RequestID,
			"error", err,
		)
	}
	r.QRCode = qr
	r.advance(StatusSubmitting)

	f.logger.InfoContext(ctx, "submitting payment request",
		"request_id", r.RequestID,
		"requester", r.Payer,
		"target", r.Recipient,
		"lamports", lamports,
	)

	var moved uint64
	instructions := make([]solanago.Instruction, 0, len(f.cfg.MarkerLamports)+1)
	for _, marker := range f.cfg.MarkerLamports {
		instructions = append(instructions, system.NewTransferInstruction(marker, requester, target).Build())
		moved += marker
	}
	instructions = append(instructions, memoInstruction(requester, RequestMemo(r.RequestID, lamports, note)))

	sig, err := f.submit(ctx, requester, instructions, f.cfg.RequestCommitment)
	if err != nil {
		return f.fail(ctx, r, MsgRequestFailure, fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}

	r.Signature = sig.String()
	r.Message = MsgRequestSuccess
	r.advance(StatusConfirmed)
	f.confirmed(ctx, r, moved, 0)
	return r, nil
}

// RequestMemo renders the memo attached to a payment-request marker.
// Format: solpay:request:<request-id>:<lamports>[:<note>]
func RequestMemo(requestID string, lamports uint64, note string) string {
	memo := fmt.Sprintf("%s%s:%d", MemoPrefix, requestID, lamports)
	if note != "" {
		memo += ":" + note
	}
	return memo
}

func memoInstruction(signer solanago.PublicKey, memo string) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.MemoProgramID,
		solanago.AccountMetaSlice{solanago.NewAccountMeta(signer, false, true)},
		[]byte(memo),
	)
}

// buildSolanaPayURL creates a Solana Pay transfer request URL.
// Format: solana:{recipient}?amount={amount}&label={label}&memo={memo}&message={message}
func buildSolanaPayURL(recipient string, lamports uint64, memo, label, message string) string {
	params := url.Values{}
	params.Set("amount", formatAmount(lamports))
	params.Set("memo", memo)
	if label != "" {
		params.Set("label", label)
	}
	if message != "" {
		params.Set("message", message)
	}
	return fmt.Sprintf("solana:%s?%s", recipient, params.Encode())
}

// formatAmount renders lamports as an exact decimal SOL amount without
// trailing zeros.
func formatAmount(lamports uint64) string {
	whole := lamports / solanago.LAMPORTS_PER_SOL
	frac := lamports % solanago.LAMPORTS_PER_SOL
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%09d", whole, frac), "0")
}

// generateQRCode returns a base64-encoded 256x256 PNG QR code of data.
func generateQRCode(data string) (string, error) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
