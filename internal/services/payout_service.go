package services

import (
	"encoding/xml"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/astroline/backend/internal/models"
)

// PayoutService turns astrologer withdrawal entries into ISO 20022 pacs.008
// credit transfer instructions for the payout bank.
type PayoutService struct {
	platformBIC string
	currency    string
}

func NewPayoutService() *PayoutService {
	platformBIC := "ASTROLNE"
	if env := os.Getenv("PAYOUT_PLATFORM_BIC"); env != "" {
		platformBIC = env
	}
	currency := "INR"
	if env := os.Getenv("WALLET_CURRENCY"); env != "" {
		currency = env
	}
	return &PayoutService{
		platformBIC: platformBIC,
		currency:    currency,
	}
}

// SendPayout builds and dispatches the payout instruction for a withdrawal
// entry.
func (p *PayoutService) SendPayout(entry *models.LedgerEntry, astrologer *models.Astrologer) error {
	doc, err := p.CreatePacs008(entry, astrologer)
	if err != nil {
		return err
	}
	return p.send(doc)
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message for
// the withdrawal.
func (p *PayoutService) CreatePacs008(entry *models.LedgerEntry, astrologer *models.Astrologer) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if astrologer.PayoutBankBIC == "" || astrologer.PayoutAccount == "" {
		return nil, fmt.Errorf("astrologer %s has no payout bank configured", astrologer.AstrologerID)
	}

	msgID := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	amount := entry.Amount.InexactFloat64()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(p.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(entry.EntryID)}[0],
					EndToEndId: common.Max35Text(entry.EntryID),
					TxId:       &[]common.Max35Text{common.Max35Text(entry.EntryID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(p.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(p.platformBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Astroline Wallet")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(astrologer.PayoutBankBIC)}[0],
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(astrologer.PayoutAccount)}[0],
				},
			},
		},
	}

	return doc, nil
}

func (p *PayoutService) send(doc any) error {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	// TODO: wire the payout bank's submission endpoint once credentials land.
	log.Printf("[PAYOUT] Sending payout instruction: %s", string(xmlData))
	return nil
}
