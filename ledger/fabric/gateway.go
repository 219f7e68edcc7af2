// Package fabric connects the coordinator to a Hyperledger Fabric network
// through the Fabric Gateway service.
package fabric

import (
	"context"
	"crypto/x509"
	"os"
	"time"

	"election-coordinator/ledger"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

type Config struct {
	Endpoint           string
	TLSCACertPath      string
	ServerNameOverride string
	MSPID              string
	CertPath           string
	KeyPath            string
	Channel            string
	Chaincode          string

	EvaluateTimeout     time.Duration
	EndorseTimeout      time.Duration
	SubmitTimeout       time.Duration
	CommitStatusTimeout time.Duration
}

// Connector owns one gRPC connection to a gateway peer and opens a lightweight
// gateway session on it per request.
type Connector struct {
	cfg  Config
	conn *grpc.ClientConn
	id   *identity.X509Identity
	sign identity.Sign
	log  logrus.FieldLogger
}

func NewConnector(cfg Config, logger logrus.FieldLogger) (*Connector, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	id, err := loadIdentity(cfg.MSPID, cfg.CertPath)
	if err != nil {
		return nil, err
	}
	sign, err := loadSign(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	creds, err := transportCredentials(cfg.TLSCACertPath, cfg.ServerNameOverride)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create gRPC connection to %s", cfg.Endpoint)
	}

	logger.WithFields(logrus.Fields{
		"endpoint":  cfg.Endpoint,
		"msp_id":    cfg.MSPID,
		"channel":   cfg.Channel,
		"chaincode": cfg.Chaincode,
	}).Info("fabric gateway connector ready")

	return &Connector{
		cfg:  cfg,
		conn: conn,
		id:   id,
		sign: sign,
		log:  logger.WithField("component", "fabric-gateway"),
	}, nil
}

func loadIdentity(mspID, certPath string) (*identity.X509Identity, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read client certificate")
	}
	cert, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse client certificate")
	}
	id, err := identity.NewX509Identity(mspID, cert)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client identity")
	}
	return id, nil
}

func loadSign(keyPath string) (identity.Sign, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read client private key")
	}
	key, err := identity.PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse client private key")
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create signer")
	}
	return sign, nil
}

func transportCredentials(caPath, serverName string) (credentials.TransportCredentials, error) {
	if caPath == "" {
		return insecure.NewCredentials(), nil
	}
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read TLS CA certificate")
	}
	caCert, err := identity.CertificateFromPEM(caPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse TLS CA certificate")
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	return credentials.NewClientTLSFromCert(pool, serverName), nil
}

// Connect opens a gateway session. Closing the session leaves the shared gRPC
// connection open for the next request.
func (c *Connector) Connect(ctx context.Context) (ledger.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable("connect", err)
	}

	gw, err := client.Connect(c.id,
		client.WithSign(c.sign),
		client.WithClientConnection(c.conn),
		client.WithEvaluateTimeout(c.cfg.EvaluateTimeout),
		client.WithEndorseTimeout(c.cfg.EndorseTimeout),
		client.WithSubmitTimeout(c.cfg.SubmitTimeout),
		client.WithCommitStatusTimeout(c.cfg.CommitStatusTimeout),
	)
	if err != nil {
		return nil, ledger.Unavailable("connect", err)
	}

	return &session{
		gw:       gw,
		contract: gw.GetNetwork(c.cfg.Channel).GetContract(c.cfg.Chaincode),
		log:      c.log,
	}, nil
}

func (c *Connector) Close() error {
	return c.conn.Close()
}

type session struct {
	gw       *client.Gateway
	contract *client.Contract
	log      logrus.FieldLogger
}

func (s *session) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	payload, err := s.contract.EvaluateWithContext(ctx, name, client.WithArguments(args...))
	if err != nil {
		return nil, classifyBeforeOrdering(name, "", err)
	}
	return payload, nil
}

// Submit endorses, orders and waits for the commit of one transaction. Failures
// before the endorsed transaction is handed to the orderer cannot have been
// committed; failures from that point on are reported as ambiguous.
func (s *session) Submit(ctx context.Context, name string, args ...string) (*ledger.Commit, error) {
	proposal, err := s.contract.NewProposal(name, client.WithArguments(args...))
	if err != nil {
		return nil, ledger.Unavailable(name, err)
	}
	txID := proposal.TransactionID()
	logger := s.log.WithFields(logrus.Fields{"tx": name, "tx_id": txID})

	transaction, err := proposal.EndorseWithContext(ctx)
	if err != nil {
		return nil, classifyBeforeOrdering(name, txID, err)
	}

	commit, err := transaction.SubmitWithContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("submit to orderer failed, outcome unknown")
		return nil, ambiguous(name, txID, err)
	}

	status, err := commit.StatusWithContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("commit status unavailable, outcome unknown")
		return nil, ambiguous(name, txID, err)
	}
	if !status.Successful {
		return nil, invalidated(name, txID, status.Code)
	}

	logger.WithField("block", status.BlockNumber).Debug("transaction committed")
	return &ledger.Commit{TransactionID: txID, Payload: transaction.Result()}, nil
}

func (s *session) Close() error {
	return s.gw.Close()
}
