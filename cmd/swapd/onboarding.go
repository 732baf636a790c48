package main

import (
	"fmt"
	"strings"

	"github.com/anchorswap/swapd/internal/config"
	"github.com/urfave/cli/v2"
)

const (
	identifierFlagName = "identifier"
	kycFlagName        = "kyc"
	emailFlagName      = "email"
)

var (
	identifierFlag = &cli.StringFlag{
		Name:     identifierFlagName,
		Usage:    "account identifier to register with the escrow provider",
		Required: true,
	}
	kycFlag = &cli.StringSliceFlag{
		Name:  kycFlagName,
		Usage: "kyc field as key=value, repeatable",
	}
	emailFlag = &cli.StringFlag{
		Name:     emailFlagName,
		Usage:    "email of the depositing account",
		Required: true,
	}

	registerCmd = &cli.Command{
		Name:   "register",
		Usage:  "register an identity with the escrow provider",
		Flags:  append(config.AllFlags(), identifierFlag, kycFlag),
		Action: registerAction,
	}
	depositCmd = &cli.Command{
		Name:   "deposit",
		Usage:  "create a deposit intent with the escrow provider",
		Flags:  append(config.AllFlags(), emailFlag),
		Action: depositAction,
	}
)

func registerAction(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}
	svc, err := cfg.EscrowService()
	if err != nil {
		return err
	}

	kycData := make(map[string]string)
	for _, field := range ctx.StringSlice(kycFlagName) {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid kyc field %q, expected key=value", field)
		}
		kycData[parts[0]] = parts[1]
	}

	result, err := svc.Register(ctx.Context, ctx.String(identifierFlagName), kycData)
	if err != nil {
		return err
	}

	fmt.Printf("account id: %s\ncomplete onboarding at: %s\n", result.AccountId, result.Url)
	return nil
}

func depositAction(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}
	svc, err := cfg.EscrowService()
	if err != nil {
		return err
	}

	intent, err := svc.CreateDepositIntent(ctx.Context, ctx.String(emailFlagName))
	if err != nil {
		return err
	}

	fmt.Printf("complete the deposit at: %s\n", intent.RedirectUrl)
	return nil
}
