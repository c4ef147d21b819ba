package topology

import (
	"fmt"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
)

// defaultZoneCount is the number of availability zones a network without
// declared subnets is spread over. Each zone gets one public and one
// private subnet.
const defaultZoneCount = 2

// defaultSubnets splits cidrBlock into equal public and private subnets,
// defaultZoneCount of each: public-1, public-2, private-1, private-2 in
// address order. It returns nil when the block cannot be split.
func defaultSubnets(cidrBlock string) []Subnet {
	_, base, err := net.ParseCIDR(cidrBlock)
	if err != nil {
		return nil
	}

	total := 2 * defaultZoneCount
	newBits := 0
	for 1<<newBits < total {
		newBits++
	}
	ones, bits := base.Mask.Size()
	if ones+newBits > bits {
		return nil
	}

	subnets := make([]Subnet, 0, total)
	for i := 0; i < total; i++ {
		block, err := cidr.Subnet(base, newBits, i)
		if err != nil {
			return nil
		}
		t, slot := SubnetPublic, i+1
		if i >= defaultZoneCount {
			t, slot = SubnetPrivate, i-defaultZoneCount+1
		}
		subnets = append(subnets, Subnet{
			Name: fmt.Sprintf("%s-%d", t, slot),
			Type: t,
			CIDR: block.String(),
		})
	}
	return subnets
}
