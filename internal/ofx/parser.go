// Package ofx imports corporate-card statements in OFX/QFX format.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	fitNamespace  = uuid.MustParse("0b9d7c44-53a4-4f0e-8f6e-8d2f61a0c3d5")
)

// Statement is the result of parsing one OFX file for a customer.
type Statement struct {
	Accounts     []string
	Transactions []model.Transaction
	// Credits counts payments and refunds, which are not card spend and are
	// skipped.
	Credits int
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Mixed-case SEVERITY values are rejected by the decoder.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML files sometimes drop the closing bracket of a bare opening tag.
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns the charges it contains,
// attributed to customerID.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader, customerID string) (*Statement, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("customer ID is required")
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	stmt := &Statement{Transactions: []model.Transaction{}}
	accounts := make(map[string]bool)
	var bankStmts, ccStmts int

	for _, msg := range resp.CreditCard {
		cc, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		ccStmts++
		accounts[string(cc.CCAcctFrom.AcctID)] = true
		p.collect(stmt, cc.BankTranList, cc.CurDef.String(), customerID)
	}

	// Some issuers export card activity through the bank message set.
	for _, msg := range resp.Bank {
		bank, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		bankStmts++
		accounts[string(bank.BankAcctFrom.AcctID)] = true
		p.collect(stmt, bank.BankTranList, bank.CurDef.String(), customerID)
	}

	for acct := range accounts {
		if acct != "" {
			stmt.Accounts = append(stmt.Accounts, acct)
		}
	}

	slog.Info("Parsed OFX file",
		"customer_id", customerID,
		"charges", len(stmt.Transactions),
		"credits", stmt.Credits,
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return stmt, nil
}

func (p *Parser) collect(stmt *Statement, list *ofxgo.TransactionList, homeCurrency, customerID string) {
	if list == nil {
		return
	}
	for _, ofxTx := range list.Transactions {
		// Charges are negative on card statements.
		if ofxTx.TrnAmt.Sign() >= 0 {
			stmt.Credits++
			continue
		}
		stmt.Transactions = append(stmt.Transactions, p.convertTransaction(ofxTx, homeCurrency, customerID))
	}
}

// convertTransaction converts an OFX charge to our model.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, homeCurrency, customerID string) model.Transaction {
	merchantName := p.extractMerchantName(ofxTx)

	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		slog.Warn("Unparseable OFX amount", "fitid", ofxTx.FiTID, "error", err)
	}

	tx := model.Transaction{
		ID:               uuid.NewSHA1(fitNamespace, []byte(customerID+"/"+string(ofxTx.FiTID))).String(),
		CustomerID:       customerID,
		Date:             ofxTx.DtPosted.Time.UTC(),
		MerchantName:     merchantName,
		MerchantCategory: InferCategory(int(ofxTx.SIC), merchantName),
		Amount:           amount.Abs(),
		International:    isForeign(ofxTx, homeCurrency),
	}
	tx.Hash = tx.IDHash()

	return tx
}

// isForeign reports whether a charge was made in a currency other than the
// statement's home currency.
func isForeign(tx ofxgo.Transaction, homeCurrency string) bool {
	for _, c := range []*ofxgo.Currency{tx.OrigCurrency, tx.Currency} {
		if c == nil {
			continue
		}
		sym := c.CurSym.String()
		if sym != "" && sym != "XXX" && !strings.EqualFold(sym, homeCurrency) {
			return true
		}
	}
	return false
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	// PAYEE is cleaner than NAME when present.
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"AMEX PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"PURCHASE",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
