// Package chain предоставляет клиент сети Solana: проверку статуса транзакций
// оплаты и отправку токенов PRG покупателям.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// TxStatus описывает результат поиска транзакции в сети.
type TxStatus struct {
	// Found — транзакция видна в сети.
	Found bool
	// Err — текст ошибки исполнения, пустой для успешной транзакции.
	Err string
}

// Client инкапсулирует обращения к RPC-узлу Solana от имени казначейства пресейла.
type Client struct {
	rpc      *rpc.Client
	mint     solana.PublicKey
	treasury solana.PrivateKey
	logger   *zap.Logger

	mu             sync.Mutex
	senderAccount  solana.PublicKey
	senderResolved bool
}

// New создаёт клиент сети для указанного RPC-узла, минта PRG и ключа казначейства.
func New(rpcURL, mintAddress, treasuryPrivateKey string, logger *zap.Logger) (*Client, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("parse token mint: %w", err)
	}

	treasury, err := solana.PrivateKeyFromBase58(treasuryPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse treasury key: %w", err)
	}

	return &Client{
		rpc:      rpc.New(rpcURL),
		mint:     mint,
		treasury: treasury,
		logger:   logger,
	}, nil
}

// TransactionStatus ищет транзакцию по подписи и сообщает, найдена ли она
// и завершилась ли ошибкой исполнения.
func (c *Client) TransactionStatus(ctx context.Context, signature string) (*TxStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return &TxStatus{Found: false}, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if out == nil {
		return &TxStatus{Found: false}, nil
	}

	st := &TxStatus{Found: true}
	if out.Meta != nil && out.Meta.Err != nil {
		st.Err = fmt.Sprint(out.Meta.Err)
	}

	return st, nil
}

// EnsureSenderAccount разрешает токен-аккаунт казначейства, при необходимости
// создавая его. Результат кэшируется: воркер вызывает метод один раз на прогон.
func (c *Client) EnsureSenderAccount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.senderResolved {
		return nil
	}

	owner := c.treasury.PublicKey()
	account, createInstr, err := c.resolveTokenAccount(ctx, owner)
	if err != nil {
		return err
	}

	if createInstr != nil {
		if _, err := c.submit(ctx, []solana.Instruction{createInstr}); err != nil {
			return fmt.Errorf("create treasury token account: %w", err)
		}
		c.logger.Info("created treasury token account", zap.String("account", account.String()))
	}

	c.senderAccount = account
	c.senderResolved = true

	return nil
}

// SendTokens отправляет amountSmallest минимальных единиц PRG на адрес получателя,
// создавая токен-аккаунт получателя, если его ещё нет. Возвращает подпись транзакции.
func (c *Client) SendTokens(ctx context.Context, recipient string, amountSmallest int64) (string, error) {
	if err := c.EnsureSenderAccount(ctx); err != nil {
		return "", err
	}

	recipientOwner, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", fmt.Errorf("parse recipient: %w", err)
	}

	recipientAccount, createInstr, err := c.resolveTokenAccount(ctx, recipientOwner)
	if err != nil {
		return "", err
	}

	var instrs []solana.Instruction
	if createInstr != nil {
		instrs = append(instrs, createInstr)
	}

	instrs = append(instrs, token.NewTransferInstruction(
		uint64(amountSmallest),
		c.senderAccount,
		recipientAccount,
		c.treasury.PublicKey(),
		nil,
	).Build())

	sig, err := c.submit(ctx, instrs)
	if err != nil {
		return "", err
	}

	return sig.String(), nil
}

// resolveTokenAccount возвращает адрес ассоциированного токен-аккаунта владельца
// и инструкцию его создания, если аккаунт в сети отсутствует.
func (c *Client) resolveTokenAccount(ctx context.Context, owner solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	account, _, err := solana.FindAssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("derive token account: %w", err)
	}

	_, err = c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			instr := ata.NewCreateInstruction(c.treasury.PublicKey(), owner, c.mint).Build()
			return account, instr, nil
		}
		return solana.PublicKey{}, nil, fmt.Errorf("get account info: %w", err)
	}

	return account, nil, nil
}

func (c *Client) submit(ctx context.Context, instrs []solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instrs, recent.Value.Blockhash,
		solana.TransactionPayer(c.treasury.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.treasury.PublicKey()) {
			return &c.treasury
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	return sig, nil
}
