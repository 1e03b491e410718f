// =============================================================================
// 📦 测试数据工厂 - Schema 与模型生成样例
// =============================================================================
package fixtures

import "github.com/BaSui01/schemaforge/structured"

// Product 结构化测试使用的目标类型
type Product struct {
	Name     string   `json:"name" description:"Product name"`
	Price    float64  `json:"price" jsonschema:"minimum=0"`
	Currency string   `json:"currency" jsonschema:"enum=USD,EUR,CNY"`
	Tags     []string `json:"tags,omitempty"`
}

// SchemaDescription implements structured.Describer.
func (Product) SchemaDescription() string { return "A product listed in the catalogue." }

// ProductText 非结构化输入
const ProductText = "The new Aurora desk lamp costs 49.90 USD and is great for reading and office use."

// ProductJSON 符合 Product schema 的回复
const ProductJSON = `{"name":"Aurora desk lamp","price":49.9,"currency":"USD","tags":["reading","office"]}`

// ProductJSONInvalid 缺少必填字段 currency
const ProductJSONInvalid = `{"name":"Aurora desk lamp","price":49.9}`

// ProductSchema 返回 Product 的 JSON Schema
func ProductSchema() *structured.JSONSchema {
	s, err := structured.SchemaFor[Product]()
	if err != nil {
		panic(err)
	}
	return s
}

// PersonSample 模型生成的样例数据
const PersonSample = `{"name":"Ada Lovelace","email":"ada@example.com","address":{"city":"London","street":"St James's Square"},"skills":["math","poetry"]}`

// PersonModelsReply 模型生成的 LLM 回复：主模型 Person 与子模型 Address
const PersonModelsReply = `{"models":{
  "Person":{"type":"object","description":"A person","properties":{
    "name":{"type":"string","description":"Full name"},
    "email":{"type":"string","format":"email"},
    "address":{"$ref":"#/$defs/Address"},
    "skills":{"type":"array","items":{"type":"string"}}},
    "required":["name","address"]},
  "Address":{"type":"object","properties":{
    "city":{"type":"string"},
    "street":{"type":"string"}},
    "required":["city"]}
}}`

// PersonModelsReplyMissingMain 缺少主模型的回复
const PersonModelsReplyMissingMain = `{"models":{"Address":{"type":"object","properties":{"city":{"type":"string"}}}}}`

// PersonModelsReplyDanglingRef 引用未定义子模型的回复
const PersonModelsReplyDanglingRef = `{"models":{"Person":{"type":"object","properties":{"address":{"$ref":"#/$defs/Address"}}}}}`
