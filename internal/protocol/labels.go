package protocol

// DefaultEvaluation is used when a reply carries no readable label.
const DefaultEvaluation = "波澜不惊"

type Bucket string

const (
	BucketPositive Bucket = "positive"
	BucketNegative Bucket = "negative"
	BucketNeutral  Bucket = "neutral"
	BucketUnknown  Bucket = "unknown"
)

var (
	PositiveLabels = []string{"拨云见日", "情绪共鸣", "点醒梦中人", "一锤定音", "授人以渔", "凝聚共识", "激发斗志", "化险为夷", "开诚布公", "明辨功过", "领袖担当"}
	NegativeLabels = []string{"引爆炸药", "对牛弹琴", "火上浇油", "鸡同鸭讲", "雪上加霜", "授人以柄", "极度尴尬", "南辕北辙", "助纣为虐", "混淆是非", "推卸责任"}
	NeutralLabels  = []string{"波澜不惊", "隔靴搔痒", "投石问路", "无功无过", "照本宣科"}
)

// Classify reports which vocabulary bucket a label belongs to.
func Classify(label string) Bucket {
	for _, group := range []struct {
		bucket Bucket
		labels []string
	}{
		{BucketPositive, PositiveLabels},
		{BucketNegative, NegativeLabels},
		{BucketNeutral, NeutralLabels},
	} {
		for _, l := range group.labels {
			if l == label {
				return group.bucket
			}
		}
	}
	return BucketUnknown
}
