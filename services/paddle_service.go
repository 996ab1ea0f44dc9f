package services

import (
	"context"
	"fmt"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/google/uuid"

	"nyraAPI/internal/fuel"
)

const (
	paddleSandboxCheckout = "https://sandbox-checkout.paddle.com/checkout/custom?_ptxn=%s"
	paddleLiveCheckout    = "https://checkout.paddle.com/checkout/custom?_ptxn=%s"
)

// PaddleService opens Paddle transactions for fuel packages. The user id is
// carried in custom data so the paid webhook can credit the right account.
type PaddleService struct {
	client      *paddle.SDK
	priceIDs    map[fuel.Package]string
	returnURL   string
	checkoutFmt string
}

type PaddleConfig struct {
	FullPriceID   string
	RefillPriceID string
	ReturnURL     string
	Sandbox       bool
}

func NewPaddleService(client *paddle.SDK, cfg PaddleConfig) *PaddleService {
	checkoutFmt := paddleLiveCheckout
	if cfg.Sandbox {
		checkoutFmt = paddleSandboxCheckout
	}
	return &PaddleService{
		client: client,
		priceIDs: map[fuel.Package]string{
			fuel.PackageFull:   cfg.FullPriceID,
			fuel.PackageRefill: cfg.RefillPriceID,
		},
		returnURL:   cfg.ReturnURL,
		checkoutFmt: checkoutFmt,
	}
}

func (s *PaddleService) CreateCheckout(ctx context.Context, userID uuid.UUID, pkg fuel.Package) (*fuel.Checkout, error) {
	priceID := s.priceIDs[pkg]
	if priceID == "" {
		return nil, fmt.Errorf("no paddle price configured for package %q", pkg)
	}

	returnURL := s.returnURL
	req := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  priceID,
			}),
		},
		CustomData: paddle.CustomData{
			"userId":  userID.String(),
			"package": string(pkg),
		},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
		Checkout: &paddle.TransactionCheckout{
			URL: &returnURL,
		},
	}

	tx, err := s.client.CreateTransaction(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	return &fuel.Checkout{
		TransactionID: tx.ID,
		CheckoutURL:   fmt.Sprintf(s.checkoutFmt, tx.ID),
		Package:       pkg,
	}, nil
}

// PurchaseFromCustomData reads the user and package a transaction was opened
// for.
func PurchaseFromCustomData(transactionID string, data paddle.CustomData) (fuel.Purchase, error) {
	rawUser, _ := data["userId"].(string)
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return fuel.Purchase{}, fmt.Errorf("transaction %s has no valid userId: %w", transactionID, err)
	}
	pkg := fuel.Package(fmt.Sprint(data["package"]))
	if !pkg.Valid() {
		return fuel.Purchase{}, fmt.Errorf("transaction %s has unknown package %q", transactionID, pkg)
	}
	return fuel.Purchase{
		Provider:      "paddle",
		TransactionID: transactionID,
		UserID:        userID,
		Package:       pkg,
	}, nil
}
