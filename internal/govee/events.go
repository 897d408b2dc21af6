package govee

import "govee-client/internal/models"

const eventBuffer = 16

// SubscribeConnectivity returns a channel that receives every API
// reachability flip. Events are dropped when the subscriber falls behind.
func (c *Client) SubscribeConnectivity() <-chan bool {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	ch := make(chan bool, eventBuffer)
	c.connSubs = append(c.connSubs, ch)
	return ch
}

// SubscribeNewDevices returns a channel that receives every device record
// the moment it is first discovered.
func (c *Client) SubscribeNewDevices() <-chan *models.GoveeDevice {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	ch := make(chan *models.GoveeDevice, eventBuffer)
	c.devSubs = append(c.devSubs, ch)
	return ch
}

func (c *Client) publishConnectivity(online bool) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	for _, ch := range c.connSubs {
		select {
		case ch <- online:
		default:
			c.logger.Warn("dropping connectivity event, subscriber not keeping up")
		}
	}
}

func (c *Client) publishDevice(dev *models.GoveeDevice) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	for _, ch := range c.devSubs {
		select {
		case ch <- dev:
		default:
			c.logger.Warn("dropping device event, subscriber not keeping up", "device", dev.Device)
		}
	}
}
