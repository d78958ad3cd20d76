package probe

import (
	"strings"

	"github.com/jaypipes/ghw"
)

// nvidiaVendorID is the PCI vendor ID assigned to NVIDIA Corporation.
const nvidiaVendorID = "10de"

// ghwPCI inventories graphics cards through the ghw hardware database.
type ghwPCI struct{}

func (ghwPCI) GraphicsCards() ([]PCIDevice, error) {
	info, err := ghw.GPU()
	if err != nil {
		return nil, err
	}

	var cards []PCIDevice
	for _, card := range info.GraphicsCards {
		if card.DeviceInfo == nil || card.DeviceInfo.Vendor == nil {
			continue
		}
		if !strings.EqualFold(card.DeviceInfo.Vendor.ID, nvidiaVendorID) {
			continue
		}

		dev := PCIDevice{
			Address: card.Address,
			Vendor:  card.DeviceInfo.Vendor.Name,
			Driver:  card.DeviceInfo.Driver,
		}
		if card.DeviceInfo.Product != nil {
			dev.Product = card.DeviceInfo.Product.Name
		}
		cards = append(cards, dev)
	}
	return cards, nil
}
