package infra

import (
	"fmt"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
	. "github.com/olatheander/aws-cdk-lambda-monorepo/intrinsics"
	"github.com/olatheander/aws-cdk-lambda-monorepo/resources/ec2"
)

// network holds the IDs the function attaches to.
type network struct {
	privateSubnets []string
	defaultRoutes  []string
}

const (
	vpcCidr      = "10.0.0.0/16"
	availability = 2
)

// subnetCidrs splits the VPC into four /18 blocks: public subnets first,
// then private subnets, one of each per availability zone.
var subnetCidrs = map[string][availability]string{
	"Public":  {"10.0.0.0/18", "10.0.64.0/18"},
	"Private": {"10.0.128.0/18", "10.0.192.0/18"},
}

func declareNetwork(b *template.Builder) network {
	// ----------------------------------------------------------------------------
	// VPC and Internet Gateway
	// ----------------------------------------------------------------------------

	b.Add(VpcID, ec2.VPC{
		CidrBlock:          vpcCidr,
		EnableDnsHostnames: true,
		EnableDnsSupport:   true,
		InstanceTenancy:    "default",
		Tags:               Any(NameTag(VpcID)),
	})

	igw := VpcID + "IGW"
	attachment := VpcID + "VPCGW"
	b.Add(igw, ec2.InternetGateway{
		Tags: Any(NameTag(VpcID)),
	})
	b.Add(attachment, ec2.VPCGatewayAttachment{
		InternetGatewayId: Ref{LogicalName: igw},
		VpcId:             Ref{LogicalName: VpcID},
	})

	// ----------------------------------------------------------------------------
	// Public subnets, each with a NAT gateway
	// ----------------------------------------------------------------------------

	var net network
	nats := make([]string, availability)

	for i := 0; i < availability; i++ {
		prefix := fmt.Sprintf("%sPublicSubnet%d", VpcID, i+1)
		subnet, routeTable, association := declareSubnet(b, prefix, subnetCidrs["Public"][i], i, true)

		route := prefix + "DefaultRoute"
		b.Add(route, ec2.Route{
			DestinationCidrBlock: "0.0.0.0/0",
			GatewayId:            Ref{LogicalName: igw},
			RouteTableId:         Ref{LogicalName: routeTable},
		}, attachment)

		eip := prefix + "EIP"
		b.Add(eip, ec2.EIP{
			Domain: "vpc",
			Tags:   Any(NameTag(VpcID + "/PublicSubnet" + fmt.Sprint(i+1))),
		})

		nats[i] = prefix + "NATGateway"
		b.Add(nats[i], ec2.NatGateway{
			AllocationId: GetAtt{LogicalName: eip, Attribute: "AllocationId"},
			SubnetId:     Ref{LogicalName: subnet},
			Tags:         Any(NameTag(VpcID + "/PublicSubnet" + fmt.Sprint(i+1))),
		}, route, association)
	}

	// ----------------------------------------------------------------------------
	// Private subnets, egress through the NAT gateway of the same zone
	// ----------------------------------------------------------------------------

	for i := 0; i < availability; i++ {
		prefix := fmt.Sprintf("%sPrivateSubnet%d", VpcID, i+1)
		subnet, routeTable, _ := declareSubnet(b, prefix, subnetCidrs["Private"][i], i, false)

		route := prefix + "DefaultRoute"
		b.Add(route, ec2.Route{
			DestinationCidrBlock: "0.0.0.0/0",
			NatGatewayId:         Ref{LogicalName: nats[i]},
			RouteTableId:         Ref{LogicalName: routeTable},
		})

		net.privateSubnets = append(net.privateSubnets, subnet)
		net.defaultRoutes = append(net.defaultRoutes, route)
	}

	return net
}

// declareSubnet adds a subnet with its own route table and returns the
// logical IDs of the subnet, the route table and the association.
func declareSubnet(b *template.Builder, prefix, cidr string, zone int, public bool) (string, string, string) {
	subnet := prefix + "Subnet"
	routeTable := prefix + "RouteTable"
	association := prefix + "RouteTableAssociation"

	kind := "Private"
	if public {
		kind = "Public"
	}
	path := fmt.Sprintf("%s/%sSubnet%d", VpcID, kind, zone+1)

	b.Add(subnet, ec2.Subnet{
		AvailabilityZone:    AZ(zone),
		CidrBlock:           cidr,
		MapPublicIpOnLaunch: public,
		VpcId:               Ref{LogicalName: VpcID},
		Tags: Any(
			NameTag(path),
			Tag{Key: "aws-cdk:subnet-name", Value: kind},
			Tag{Key: "aws-cdk:subnet-type", Value: kind},
		),
	})
	b.Add(routeTable, ec2.RouteTable{
		VpcId: Ref{LogicalName: VpcID},
		Tags:  Any(NameTag(path)),
	})
	b.Add(association, ec2.SubnetRouteTableAssociation{
		RouteTableId: Ref{LogicalName: routeTable},
		SubnetId:     Ref{LogicalName: subnet},
	})

	return subnet, routeTable, association
}
