package broker

import (
	"encoding/json"

	config "github.com/nalam-kiosk/rfid-services/configs"
	"github.com/nalam-kiosk/rfid-services/internal/comm"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const TopicScanLogged = "rfid.scan.logged"

// Broker publishes accepted scans for downstream identity-resolution
// consumers. A nil Broker is valid and publishes nothing.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{
		Conn: nc,
	}
}

// PublishScanLogged is best effort; a failed publish is logged and never
// surfaced to the HTTP caller.
func (b *Broker) PublishScanLogged(scan *models.ScanRecord) {
	if b == nil || b.Conn == nil {
		return
	}

	notif := comm.ScanNotification{
		Scan:       scan,
		InstanceId: config.GetInstanceId(),
	}

	bytes, err := json.Marshal(notif)
	if err != nil {
		log.Errorf("failed to marshal scan notification: %v", err)
		return
	}

	if err := b.Conn.Publish(TopicScanLogged, bytes); err != nil {
		log.Errorf("failed to publish to NATS topic %s: %v", TopicScanLogged, err)
		return
	}

	log.Infof("published scan %d to topic %s", scan.ID, TopicScanLogged)
}
